package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/hirelane/interview-agent/agent/contract"
)

// Config connects the candidate directory to Postgres.
type Config struct {
	DSN             string        `envconfig:"DSN" split_words:"true" required:"true"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"8"`
	ConnMaxIdleTime time.Duration `envconfig:"CONN_MAX_IDLE_TIME" split_words:"true" default:"5m"`
}

// candidateRow is the stored candidate record. Skills are kept as a Postgres
// text array.
type candidateRow struct {
	bun.BaseModel `bun:"table:candidates,alias:c"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Name        string    `bun:"name,notnull"`
	Headline    string    `bun:"headline"`
	Skills      []string  `bun:"skills,array"`
	GitHubURL   string    `bun:"github_url"`
	LinkedInURL string    `bun:"linkedin_url"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,default:now()"`
}

// Repo is the Postgres-backed candidate directory used by the research
// worker to enrich web lookups with internally known profile data.
type Repo struct {
	db *bun.DB
}

var _ contractx.ProfileDirectory = (*Repo)(nil)

func NewRepo(cfg Config) (*Repo, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("profile db dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	return &Repo{db: bun.NewDB(sqldb, pgdialect.New())}, nil
}

// FindByName returns the stored profile matching the candidate name,
// case-insensitively. Absence is reported as ErrProfileNotFound, which the
// research worker treats as a non-fatal miss.
func (r *Repo) FindByName(ctx context.Context, name string) (*contractx.CandidateProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: candidate name is empty", contractx.ErrValidation)
	}

	row := new(candidateRow)
	err := r.db.NewSelect().
		Model(row).
		Where("lower(c.name) = lower(?)", name).
		OrderExpr("c.updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", contractx.ErrProfileNotFound, name)
		}
		return nil, fmt.Errorf("query candidate %q: %w", name, err)
	}

	return &contractx.CandidateProfile{
		Name:        row.Name,
		Headline:    row.Headline,
		Skills:      row.Skills,
		GitHubURL:   row.GitHubURL,
		LinkedInURL: row.LinkedInURL,
	}, nil
}

// Upsert stores or refreshes a candidate record, keyed by name.
func (r *Repo) Upsert(ctx context.Context, p *contractx.CandidateProfile) error {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: candidate profile has no name", contractx.ErrValidation)
	}

	row := &candidateRow{
		Name:        strings.TrimSpace(p.Name),
		Headline:    p.Headline,
		Skills:      p.Skills,
		GitHubURL:   p.GitHubURL,
		LinkedInURL: p.LinkedInURL,
		UpdatedAt:   time.Now().UTC(),
	}

	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (name) DO UPDATE").
		Set("headline = EXCLUDED.headline").
		Set("skills = EXCLUDED.skills").
		Set("github_url = EXCLUDED.github_url").
		Set("linkedin_url = EXCLUDED.linkedin_url").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert candidate %q: %w", row.Name, err)
	}
	return nil
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repo) Close() error {
	return r.db.Close()
}
