package changeorder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/plm-sdk/modules/plm/domain/changeorder"
)

func TestValidateTransition_LegalMoves(t *testing.T) {
	t.Parallel()
	legal := []struct {
		from, to changeorder.Status
	}{
		{changeorder.StatusDraft, changeorder.StatusSubmitted},
		{changeorder.StatusSubmitted, changeorder.StatusUnderReview},
		{changeorder.StatusSubmitted, changeorder.StatusRejected},
		{changeorder.StatusUnderReview, changeorder.StatusApproved},
		{changeorder.StatusUnderReview, changeorder.StatusRejected},
		{changeorder.StatusUnderReview, changeorder.StatusSubmitted},
		{changeorder.StatusApproved, changeorder.StatusImplementing},
		{changeorder.StatusApproved, changeorder.StatusRejected},
		{changeorder.StatusImplementing, changeorder.StatusCompleted},
		{changeorder.StatusImplementing, changeorder.StatusApproved},
		{changeorder.StatusRejected, changeorder.StatusSubmitted},
	}
	for _, tc := range legal {
		assert.NoError(t, changeorder.ValidateTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestValidateTransition_IllegalMoveCarriesAllowedTargets(t *testing.T) {
	t.Parallel()
	err := changeorder.ValidateTransition(changeorder.StatusSubmitted, changeorder.StatusCompleted)
	require.Error(t, err)

	var ite *changeorder.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, changeorder.StatusSubmitted, ite.From)
	assert.Equal(t, changeorder.StatusCompleted, ite.To)
	assert.Equal(t, []changeorder.Status{changeorder.StatusUnderReview, changeorder.StatusRejected}, ite.Allowed)
}

func TestValidateTransition_CompletedIsTerminal(t *testing.T) {
	t.Parallel()
	for _, target := range []changeorder.Status{
		changeorder.StatusDraft,
		changeorder.StatusSubmitted,
		changeorder.StatusApproved,
		changeorder.StatusRejected,
	} {
		err := changeorder.ValidateTransition(changeorder.StatusCompleted, target)
		var ite *changeorder.InvalidTransitionError
		require.ErrorAs(t, err, &ite, "completed -> %s", target)
		assert.Empty(t, ite.Allowed)
	}
}

func TestVersioningRequired(t *testing.T) {
	t.Parallel()
	versioning := map[changeorder.Status]bool{
		changeorder.StatusSubmitted:    true,
		changeorder.StatusApproved:     true,
		changeorder.StatusCompleted:    true,
		changeorder.StatusUnderReview:  false,
		changeorder.StatusRejected:     false,
		changeorder.StatusImplementing: false,
		changeorder.StatusDraft:        false,
	}
	for status, want := range versioning {
		assert.Equal(t, want, changeorder.VersioningRequired(status), "status %s", status)
	}
}

func TestStatusIsValid(t *testing.T) {
	t.Parallel()
	assert.True(t, changeorder.StatusDraft.IsValid())
	assert.True(t, changeorder.StatusCompleted.IsValid())
	assert.False(t, changeorder.Status("archived").IsValid())
}
