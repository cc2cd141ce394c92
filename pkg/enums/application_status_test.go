package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationStatusTransitions(t *testing.T) {
	cases := []struct {
		from ApplicationStatus
		to   ApplicationStatus
		want bool
	}{
		{ApplicationStatusDraft, ApplicationStatusSubmitted, true},
		{ApplicationStatusSubmitted, ApplicationStatusSubmitted, true},
		{ApplicationStatusSubmitted, ApplicationStatusPaid, true},
		{ApplicationStatusPaid, ApplicationStatusUnderReview, true},
		{ApplicationStatusUnderReview, ApplicationStatusAccepted, true},
		{ApplicationStatusUnderReview, ApplicationStatusRejected, true},
		{ApplicationStatusDraft, ApplicationStatusPaid, false},
		{ApplicationStatusAccepted, ApplicationStatusDraft, false},
		{ApplicationStatusPaid, ApplicationStatusSubmitted, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
	assert.True(t, ApplicationStatusRejected.IsTerminal())
	assert.False(t, ApplicationStatusPaid.IsTerminal())
}

func TestParseHelpers(t *testing.T) {
	status, err := ParseApplicationStatus("under_review")
	require.NoError(t, err)
	assert.Equal(t, ApplicationStatusUnderReview, status)
	_, err = ParseApplicationStatus("archived")
	assert.Error(t, err)

	role, err := ParseRole("analyst")
	require.NoError(t, err)
	assert.True(t, role.IsAdmin())
	assert.False(t, RoleStudent.IsAdmin())

	admins := AdminRoles()
	admins[0] = RoleStudent
	assert.Equal(t, RoleSuperAdmin, AdminRoles()[0])

	method, err := ParsePaymentMethod("bank_transfer")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodBankTransfer, method)
	_, err = ParsePaymentMethod("crypto")
	assert.Error(t, err)

	assert.True(t, AuthProviderGoogle.IsSocial())
	assert.False(t, AuthProviderPassword.IsSocial())
	_, err = ParseGender("unknown")
	assert.Error(t, err)
}

func TestPaymentHelpers(t *testing.T) {
	assert.True(t, PaymentMethodCard.NeedsCard())
	assert.False(t, PaymentMethodPayPal.NeedsCard())
	assert.True(t, PaymentStatusCompleted.SettlesApplication())
	assert.False(t, PaymentStatusFailed.SettlesApplication())

	_, err := ParseCurrency("EUR")
	assert.EqualError(t, err, `invalid currency "EUR"`)
	_, err = ParsePaymentStatus("refunded")
	assert.NoError(t, err)
}

func TestRoleSets(t *testing.T) {
	assert.True(t, RoleStudent.IsValid())
	assert.False(t, Role("dean").IsValid())
	assert.Len(t, AdminRoles(), 5)
	assert.NotContains(t, AdminRoles(), RoleStudent)
}
