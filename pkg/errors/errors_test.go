package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCauseInChain(t *testing.T) {
	cause := fmt.Errorf("stripe: card declined")
	err := Wrap(CodeDependency, cause, "create payment")

	require.ErrorIs(t, err, cause)
	assert.True(t, IsCode(fmt.Errorf("outer: %w", err), CodeDependency))
	assert.False(t, IsCode(err, CodeValidation))
	assert.Contains(t, err.Error(), "card declined")
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
	assert.Equal(t, http.StatusForbidden, MetadataFor(CodeSubscriptionRequired).HTTPStatus)
}

func TestLogFieldsExtractsPostgresDetails(t *testing.T) {
	pqErr := &pq.Error{Code: "23505", Constraint: "ux_activation_records_payment_intent", Message: "duplicate key value"}
	err := Wrap(CodeConflict, pqErr, "append activation")

	fields := LogFields(err)
	assert.Equal(t, CodeConflict, fields["error_code"])
	assert.Equal(t, "23505", fields["pg_code"])
	assert.Equal(t, "ux_activation_records_payment_intent", fields["pg_constraint"])
	assert.NotContains(t, fields, "pg_table")
	assert.Equal(t, []string{"*errors.Error", "*pq.Error"}, fields["error_chain"])
}

func TestPostgresReadsPgx(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "ux_offer_title", TableName: "offers"})
	pg, ok := Postgres(err)
	require.True(t, ok)
	assert.Equal(t, PGError{Code: "23505", Constraint: "ux_offer_title", Table: "offers"}, pg)

	_, ok = Postgres(fmt.Errorf("plain"))
	assert.False(t, ok)
	assert.Empty(t, LogFields(nil))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(New(CodeStateConflict, "offer blocked")))
	assert.Equal(t, http.StatusPaymentRequired, StatusOf(fmt.Errorf("confirm: %w", Newf(CodePaymentFailed, "intent %s failed", "pi_1"))))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(fmt.Errorf("plain")))
}
