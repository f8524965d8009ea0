package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/simchatzion/ledger/core"
	"github.com/simchatzion/ledger/core/cleaning"
)

const (
	paymentType      = "monthly_cleaning"
	caseMonthKey     = "payments_case_month_key"
	uniqueViolation  = "23505"
	defaultCaseOrder = "created_at DESC"
	caseColumns      = "id, case_number, case_type, family_name, child_name, contact_email, contact_phone, city, start_date, end_date, status, end_reason, end_reason_notes, created_at, updated_at"
	paymentColumns   = "id, case_id, payment_month, amount_ils, notes, status, approved_by, transferred_at, created_at, updated_at"
	historyColumns   = "id, case_id, field_changed, old_value, new_value, note, changed_at"
)

// public ordering fields -> columns
var caseOrderings = map[string]string{
	"case_number": "case_number",
	"family_name": "family_name",
	"child_name":  "child_name",
	"city":        "city",
	"start_date":  "start_date",
	"created_at":  "created_at",
}

type repository struct {
	db *sqlx.DB
}

var _ cleaning.Repository = (*repository)(nil) // interface compliance check

func NewRepository(db *sqlx.DB) cleaning.Repository {
	return &repository{db: db}
}

func (repo *repository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// namedGet runs a named query and scans its first row into dest.
func namedGet(ctx context.Context, e sqlx.ExtContext, dest interface{}, query string, arg interface{}) error {
	rows, err := sqlx.NamedQueryContext(ctx, e, query, arg)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	return rows.StructScan(dest)
}

func isCaseMonthConflict(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == caseMonthKey
}

// Cases

func (repo *repository) CreateCase(ctx context.Context, c cleaning.Case) (cleaning.Case, error) {
	q := `INSERT INTO cases (id, case_type, family_name, child_name, contact_email, contact_phone, city, start_date,
			status, created_at, updated_at)
		VALUES (:id, :case_type, :family_name, :child_name, :contact_email, :contact_phone, :city, :start_date,
			:status, :created_at, :updated_at)
		RETURNING ` + caseColumns
	var created cleaning.Case
	if err := namedGet(ctx, repo.db, &created, q, c); err != nil {
		return cleaning.Case{}, errors.Wrap(err, "inserting case")
	}
	return created, nil
}

func (repo *repository) GetCase(ctx context.Context, id string) (cleaning.Case, error) {
	var c cleaning.Case
	err := repo.db.GetContext(ctx, &c, `SELECT `+caseColumns+` FROM cases WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return cleaning.Case{}, cleaning.ErrCaseNotFound
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "22P02" { // not a uuid
			return cleaning.Case{}, cleaning.ErrCaseNotFound
		}
		return cleaning.Case{}, errors.Wrap(err, "selecting case")
	}
	return c, nil
}

func (repo *repository) QueryCases(ctx context.Context, filter cleaning.CaseFilter) ([]cleaning.Case, error) {
	conds := []string{"case_type = $1"}
	args := []interface{}{cleaning.CaseTypeCleaning}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(filter.Status))
	}
	if filter.City != "" {
		conds = append(conds, "city ILIKE "+arg(filter.City))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, "(family_name ILIKE "+p+" OR child_name ILIKE "+p+")")
	}

	q := `SELECT ` + caseColumns + ` FROM cases WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY ` + core.OrderBy(filter.Orderings, caseOrderings, defaultCaseOrder) + `, case_number DESC`
	cases := make([]cleaning.Case, 0)
	if err := repo.db.SelectContext(ctx, &cases, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting cases")
	}
	return cases, nil
}

func (repo *repository) UpdateCaseStatus(ctx context.Context, c cleaning.Case, entry cleaning.HistoryEntry) (cleaning.Case, error) {
	var updated cleaning.Case
	err := repo.withTx(ctx, func(tx *sqlx.Tx) error {
		q := `UPDATE cases
			SET status = :status, end_date = :end_date, end_reason = :end_reason, end_reason_notes = :end_reason_notes,
				updated_at = :updated_at
			WHERE id = :id
			RETURNING ` + caseColumns
		if err := namedGet(ctx, tx, &updated, q, c); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return cleaning.ErrCaseNotFound
			}
			return errors.Wrap(err, "updating case")
		}
		q = `INSERT INTO case_history (` + historyColumns + `)
			VALUES (:id, :case_id, :field_changed, :old_value, :new_value, :note, :changed_at)`
		if _, err := tx.NamedExecContext(ctx, q, entry); err != nil {
			return errors.Wrap(err, "inserting case history")
		}
		return nil
	})
	if err != nil {
		return cleaning.Case{}, err
	}
	return updated, nil
}

func (repo *repository) QueryCaseHistory(ctx context.Context, caseID string) ([]cleaning.HistoryEntry, error) {
	entries := make([]cleaning.HistoryEntry, 0)
	q := `SELECT ` + historyColumns + ` FROM case_history WHERE case_id = $1 ORDER BY changed_at DESC`
	if err := repo.db.SelectContext(ctx, &entries, q, caseID); err != nil {
		return nil, errors.Wrap(err, "selecting case history")
	}
	return entries, nil
}

// Payments

func (repo *repository) QueryPayments(ctx context.Context, filter cleaning.PaymentFilter) ([]cleaning.Payment, error) {
	conds := []string{"payment_type = $1"}
	args := []interface{}{paymentType}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.CaseIDs != nil {
		// ids that are not uuids match no case
		ids := make([]string, 0, len(filter.CaseIDs))
		for _, id := range filter.CaseIDs {
			if _, err := uuid.Parse(id); err == nil {
				ids = append(ids, id)
			}
		}
		conds = append(conds, "case_id = ANY("+arg(pq.Array(ids))+"::uuid[])")
	}
	if !filter.Month.IsZero() {
		conds = append(conds, "payment_month = "+arg(filter.Month))
	}
	if filter.Year != 0 {
		conds = append(conds, "EXTRACT(YEAR FROM payment_month) = "+arg(filter.Year))
	}

	q := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY payment_month DESC, created_at DESC`
	payments := make([]cleaning.Payment, 0)
	if err := repo.db.SelectContext(ctx, &payments, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting payments")
	}
	return payments, nil
}

func (repo *repository) GetPayment(ctx context.Context, caseID, id string) (cleaning.Payment, error) {
	var p cleaning.Payment
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 AND case_id = $2`
	err := repo.db.GetContext(ctx, &p, q, id, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return cleaning.Payment{}, cleaning.ErrPaymentNotFound
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "22P02" {
			return cleaning.Payment{}, cleaning.ErrPaymentNotFound
		}
		return cleaning.Payment{}, errors.Wrap(err, "selecting payment")
	}
	return p, nil
}

// duplicateMonth builds the conflict error, with the payment holding (case, month) when it can be found.
func (repo *repository) duplicateMonth(ctx context.Context, p cleaning.Payment) error {
	dupErr := &cleaning.DuplicateMonthError{CaseID: p.CaseID, Month: p.PaymentMonth}
	var existing cleaning.Payment
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE case_id = $1 AND payment_type = $2 AND payment_month = $3`
	if err := repo.db.GetContext(ctx, &existing, q, p.CaseID, paymentType, p.PaymentMonth); err == nil {
		dupErr.Existing = &existing
	}
	return dupErr
}

const insertPayment = `INSERT INTO payments (id, case_id, payment_type, payment_month, amount_ils, notes, status,
		created_at, updated_at)
	VALUES (:id, :case_id, '` + paymentType + `', :payment_month, :amount_ils, :notes, :status, :created_at, :updated_at)`

func (repo *repository) CreatePayment(ctx context.Context, p cleaning.Payment) (cleaning.Payment, error) {
	var created cleaning.Payment
	if err := namedGet(ctx, repo.db, &created, insertPayment+` RETURNING `+paymentColumns, p); err != nil {
		if isCaseMonthConflict(err) {
			return cleaning.Payment{}, repo.duplicateMonth(ctx, p)
		}
		return cleaning.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return created, nil
}

// CreatePayments inserts all payments in one transaction, the unique (case, month) constraint skips taken months.
func (repo *repository) CreatePayments(ctx context.Context, ps []cleaning.Payment) ([]cleaning.Payment, error) {
	created := make([]cleaning.Payment, 0, len(ps))
	q := insertPayment + ` ON CONFLICT ON CONSTRAINT ` + caseMonthKey + ` DO NOTHING RETURNING ` + paymentColumns
	err := repo.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, p := range ps {
			var row cleaning.Payment
			err := namedGet(ctx, tx, &row, q, p)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return errors.Wrapf(err, "inserting payment for case %s", p.CaseID)
			}
			created = append(created, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo *repository) UpdatePayment(ctx context.Context, p cleaning.Payment) (cleaning.Payment, error) {
	var updated cleaning.Payment
	err := repo.withTx(ctx, func(tx *sqlx.Tx) error {
		var status cleaning.PaymentStatus
		err := tx.GetContext(ctx, &status, `SELECT status FROM payments WHERE id = $1 AND case_id = $2 FOR UPDATE`, p.ID, p.CaseID)
		if errors.Is(err, sql.ErrNoRows) {
			return cleaning.ErrPaymentNotFound
		}
		if err != nil {
			return errors.Wrap(err, "locking payment")
		}
		if status != cleaning.PaymentPending {
			return cleaning.ErrNotPending
		}

		q := `UPDATE payments
			SET payment_month = :payment_month, amount_ils = :amount_ils, notes = :notes, updated_at = :updated_at
			WHERE id = :id
			RETURNING ` + paymentColumns
		return namedGet(ctx, tx, &updated, q, p)
	})
	if err != nil {
		if isCaseMonthConflict(err) {
			return cleaning.Payment{}, repo.duplicateMonth(ctx, p)
		}
		if errors.Cause(err) == cleaning.ErrNotPending || errors.Cause(err) == cleaning.ErrPaymentNotFound {
			return cleaning.Payment{}, err
		}
		return cleaning.Payment{}, errors.Wrap(err, "updating payment")
	}
	return updated, nil
}

func (repo *repository) DeletePayment(ctx context.Context, caseID, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1 AND case_id = $2 AND status = $3`,
		id, caseID, cleaning.PaymentPending)
	if err != nil {
		return errors.Wrap(err, "deleting payment")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// nothing deleted: tell a missing payment from one that moved on
	if _, err = repo.GetPayment(ctx, caseID, id); err != nil {
		return err
	}
	return cleaning.ErrNotPending
}

// Emails

func (repo *repository) LogEmail(ctx context.Context, log cleaning.EmailLog) error {
	q := `INSERT INTO email_logs (id, case_id, email_type, recipient_email, subject, status, error_message, sent_at)
		VALUES (:id, :case_id, :email_type, :recipient_email, :subject, :status, :error_message, :sent_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, log); err != nil {
		return errors.Wrap(err, "inserting email log")
	}
	return nil
}

func (repo *repository) LastEmailsSent(ctx context.Context, emailType string, caseIDs ...string) (map[string]time.Time, error) {
	var rows []struct {
		CaseID   string    `db:"case_id"`
		LastSent time.Time `db:"last_sent"`
	}
	q := `SELECT case_id, MAX(sent_at) AS last_sent
		FROM email_logs
		WHERE email_type = $1 AND status = $2 AND case_id = ANY($3::uuid[])
		GROUP BY case_id`
	if err := repo.db.SelectContext(ctx, &rows, q, emailType, cleaning.EmailSent, pq.Array(caseIDs)); err != nil {
		return nil, errors.Wrap(err, "selecting last emails sent")
	}
	last := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		last[r.CaseID] = r.LastSent
	}
	return last, nil
}

// Settings

func (repo *repository) GetSetting(ctx context.Context, key string) (string, error) {
	var val string
	err := repo.db.GetContext(ctx, &val, `SELECT setting_value FROM system_settings WHERE setting_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", cleaning.ErrSettingNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "selecting setting")
	}
	return val, nil
}

func (repo *repository) SetSetting(ctx context.Context, key, value string) error {
	q := `INSERT INTO system_settings (setting_key, setting_value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (setting_key) DO UPDATE SET setting_value = EXCLUDED.setting_value, updated_at = EXCLUDED.updated_at`
	if _, err := repo.db.ExecContext(ctx, q, key, value); err != nil {
		return errors.Wrap(err, "saving setting")
	}
	return nil
}
