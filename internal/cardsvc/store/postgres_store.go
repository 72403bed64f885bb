package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kaprika-press/card-services/internal/cardsvc/models"
)

// PostgresStore keeps one row per card, which removes the whole-collection
// rewrite of the file backend entirely.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const cardColumns = `card_id, wallet, full_name, role, alias, email, phone, delivery_address,
	image_url, pdf_url, tx_hash, token_id, issue_date, expiration_date,
	printed, shipped, delivered, revoked, created_at, updated_at`

// Init creates the cards table when it does not exist yet.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cards (
			seq              BIGSERIAL PRIMARY KEY,
			card_id          TEXT NOT NULL UNIQUE,
			wallet           TEXT NOT NULL DEFAULT '',
			full_name        TEXT NOT NULL,
			role             TEXT NOT NULL,
			alias            TEXT,
			email            TEXT,
			phone            TEXT,
			delivery_address TEXT,
			image_url        TEXT NOT NULL,
			pdf_url          TEXT NOT NULL,
			tx_hash          TEXT,
			token_id         BIGINT,
			issue_date       TEXT NOT NULL,
			expiration_date  TEXT NOT NULL,
			printed          BOOLEAN NOT NULL DEFAULT FALSE,
			shipped          BOOLEAN NOT NULL DEFAULT FALSE,
			delivered        BOOLEAN NOT NULL DEFAULT FALSE,
			revoked          BOOLEAN NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ NOT NULL,
			updated_at       TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("could not create cards table: %w", err)
	}
	return nil
}

func scanCard(row pgx.Row) (*models.CardRecord, error) {
	c := &models.CardRecord{}
	err := row.Scan(
		&c.CardId, &c.Wallet, &c.FullName, &c.Role, &c.Alias,
		&c.Email, &c.Phone, &c.DeliveryAddress,
		&c.ImageUrl, &c.PdfUrl, &c.TxHash, &c.TokenId,
		&c.IssueDate, &c.ExpirationDate,
		&c.Printed, &c.Shipped, &c.Delivered, &c.Revoked,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) GetAll(ctx context.Context) ([]models.CardRecord, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT %s FROM cards ORDER BY seq`, cardColumns))
	if err != nil {
		return nil, fmt.Errorf("could not list cards: %w", err)
	}
	defer rows.Close()

	cards := []models.CardRecord{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan card: %w", err)
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, cardId string) (*models.CardRecord, error) {
	row := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM cards WHERE card_id = $1`, cardColumns), cardId)

	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not get card: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Add(ctx context.Context, card models.CardRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO cards (card_id, wallet, full_name, role, alias, email, phone, delivery_address,
			image_url, pdf_url, tx_hash, token_id, issue_date, expiration_date,
			printed, shipped, delivered, revoked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`,
		card.CardId, card.Wallet, card.FullName, card.Role, card.Alias,
		card.Email, card.Phone, card.DeliveryAddress,
		card.ImageUrl, card.PdfUrl, card.TxHash, card.TokenId,
		card.IssueDate, card.ExpirationDate,
		card.Printed, card.Shipped, card.Delivered, card.Revoked,
		card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("could not insert card: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, cardId string, patch models.CardPatch) (*models.CardRecord, error) {
	set := "updated_at = $2"
	args := []interface{}{cardId, time.Now().UTC()}

	appendSet := func(column string, value interface{}) {
		args = append(args, value)
		set += fmt.Sprintf(", %s = $%d", column, len(args))
	}

	if patch.Printed != nil {
		appendSet("printed", *patch.Printed)
	}
	if patch.Shipped != nil {
		appendSet("shipped", *patch.Shipped)
	}
	if patch.Delivered != nil {
		appendSet("delivered", *patch.Delivered)
	}
	if patch.Revoked != nil {
		appendSet("revoked", *patch.Revoked)
	}
	if patch.TokenId != nil {
		appendSet("token_id", *patch.TokenId)
	}

	query := fmt.Sprintf(`UPDATE cards SET %s WHERE card_id = $1 RETURNING %s`, set, cardColumns)

	c, err := scanCard(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not update card: %w", err)
	}
	return c, nil
}
