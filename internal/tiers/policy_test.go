package tiers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradevouch/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradevouch/pkg/errors"
)

func TestClassifyDefaultThresholds(t *testing.T) {
	cases := map[int64]enums.Tier{
		0:  enums.TierUnranked,
		1:  enums.TierNew,
		4:  enums.TierNew,
		5:  enums.TierVerified,
		14: enums.TierVerified,
		15: enums.TierTrusted,
		99: enums.TierTrusted,
	}
	for count, want := range cases {
		assert.Equalf(t, want, Classify(count, DefaultThresholds), "count=%d", count)
	}
}

func TestClassifyZeroCountIsAlwaysUnranked(t *testing.T) {
	th := Thresholds{New: 0, Verified: 0, Trusted: 0}
	assert.Equal(t, enums.TierUnranked, Classify(0, th))
	assert.Equal(t, enums.TierTrusted, Classify(1, th))
}

func TestClassifyHigherNewThreshold(t *testing.T) {
	th := Thresholds{New: 3, Verified: 6, Trusted: 10}
	assert.Equal(t, enums.TierUnranked, Classify(2, th))
	assert.Equal(t, enums.TierNew, Classify(3, th))
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, DefaultThresholds.Validate())
	require.NoError(t, Thresholds{}.Validate())

	err := Thresholds{New: 5, Verified: 2, Trusted: 10}.Validate()
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	assert.Error(t, Thresholds{New: -1, Verified: 2, Trusted: 3}.Validate())
}
