package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "govnet/pkg/platform/audit"
	txcontext "govnet/pkg/platform/tx"
)

func TestStore_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO governance_audit_events").
		WithArgs(sqlmock.AnyArg(), "compliance", ts, int64(3), "2", "governor_transferred",
			"accepted", "", "0xabc", "", "req-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.Append(context.Background(), audit.Event{
		Timestamp: ts,
		Domain:    3,
		Subject:   "2",
		Action:    string(audit.EventGovernorTransferred),
		Decision:  "accepted",
		ActorID:   "0xabc",
		RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AppendJoinsContextTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO governance_audit_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), &sql.TxOptions{})
	require.NoError(t, err)
	ctx := txcontext.WithTx(context.Background(), tx)

	require.NoError(t, New(db).Append(ctx, audit.Event{Action: string(audit.EventPeerSet)}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListByDomain(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"category", "timestamp", "domain", "subject", "action",
		"decision", "reason", "actor_id", "message_id", "request_id"}).
		AddRow("security", ts, int64(2), "1", "governor_message_rejected", "rejected",
			"stale governor message", "1/0x01", "m-1", "")
	mock.ExpectQuery("FROM governance_audit_events").WithArgs(int64(2)).WillReturnRows(rows)

	events, err := New(db).ListByDomain(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
	assert.Equal(t, "stale governor message", events[0].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}
