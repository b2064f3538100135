package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"flight-status-sim/internal/model"
	"flight-status-sim/pkg/utils"
)

// PostgresConfig holds connection settings. URL wins over the discrete
// fields when set.
type PostgresConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (c PostgresConfig) dsn() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslmode)
}

// Postgres stores occurrences and templates in PostgreSQL.
type Postgres struct {
	db  *sql.DB
	loc *time.Location
}

// OpenPostgres connects, pings and bootstraps the schema. Times read back are
// expressed in loc.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, loc *time.Location) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}
	p := NewPostgres(db, loc)
	if err := p.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}
	return p, nil
}

// NewPostgres wraps an already opened handle without touching the schema.
func NewPostgres(db *sql.DB, loc *time.Location) *Postgres {
	if loc == nil {
		loc = time.UTC
	}
	return &Postgres{db: db, loc: loc}
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS flight_templates (
			id VARCHAR(64) PRIMARY KEY,
			flight_number VARCHAR(16) NOT NULL,
			airline VARCHAR(255) NOT NULL,
			origin VARCHAR(8) NOT NULL,
			destination VARCHAR(8) NOT NULL,
			origin_city VARCHAR(255) NOT NULL DEFAULT '',
			destination_city VARCHAR(255) NOT NULL DEFAULT '',
			departure_time VARCHAR(16) NOT NULL,
			arrival_time VARCHAR(16) NOT NULL,
			operating_days VARCHAR(7) NOT NULL,
			aircraft_type VARCHAR(64) NOT NULL DEFAULT '',
			duration VARCHAR(32) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS flight_occurrences (
			id UUID PRIMARY KEY,
			template_id VARCHAR(64) NOT NULL,
			service_date DATE NOT NULL,
			flight_number VARCHAR(16) NOT NULL,
			airline VARCHAR(255) NOT NULL,
			origin VARCHAR(8) NOT NULL,
			destination VARCHAR(8) NOT NULL,
			origin_city VARCHAR(255) NOT NULL DEFAULT '',
			destination_city VARCHAR(255) NOT NULL DEFAULT '',
			aircraft_type VARCHAR(64) NOT NULL DEFAULT '',
			duration VARCHAR(32) NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL,
			scheduled_departure TIMESTAMP WITH TIME ZONE NOT NULL,
			scheduled_arrival TIMESTAMP WITH TIME ZONE NOT NULL,
			actual_departure TIMESTAMP WITH TIME ZONE,
			actual_arrival TIMESTAMP WITH TIME ZONE,
			aircraft_registration VARCHAR(16) NOT NULL DEFAULT '',
			gate VARCHAR(8) NOT NULL DEFAULT '',
			terminal VARCHAR(8) NOT NULL DEFAULT '',
			weather_origin VARCHAR(16) NOT NULL DEFAULT '',
			weather_destination VARCHAR(16) NOT NULL DEFAULT '',
			perturbed BOOLEAN NOT NULL DEFAULT false,
			delayed BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			UNIQUE (template_id, service_date),
			CHECK (scheduled_arrival > scheduled_departure)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flight_occurrences_date ON flight_occurrences (service_date, scheduled_departure, flight_number)`,
		`CREATE INDEX IF NOT EXISTS idx_flight_occurrences_status ON flight_occurrences (service_date, status)`,
	}

	for _, query := range queries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

const occurrenceColumns = `id, template_id, service_date, flight_number, airline, origin, destination,
	origin_city, destination_city, aircraft_type, duration, status,
	scheduled_departure, scheduled_arrival, actual_departure, actual_arrival,
	aircraft_registration, gate, terminal, weather_origin, weather_destination,
	perturbed, delayed, created_at, updated_at`

const occurrenceColumnCount = 25

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (p *Postgres) scanOccurrence(row rowScanner) (model.FlightOccurrence, error) {
	var (
		o                    model.FlightOccurrence
		status, wxFrom, wxTo string
		serviceDate          time.Time
		actualDep, actualArr sql.NullTime
		schedDep, schedArr   time.Time
		createdAt, updatedAt time.Time
	)
	err := row.Scan(
		&o.ID, &o.TemplateID, &serviceDate,
		&o.Flight.FlightNumber, &o.Flight.Airline, &o.Flight.Origin, &o.Flight.Destination,
		&o.Flight.OriginCity, &o.Flight.DestinationCity, &o.Flight.AircraftType, &o.Flight.Duration,
		&status, &schedDep, &schedArr, &actualDep, &actualArr,
		&o.AircraftRegistration, &o.Gate, &o.Terminal, &wxFrom, &wxTo,
		&o.Perturbed, &o.Delayed, &createdAt, &updatedAt,
	)
	if err != nil {
		return o, err
	}

	y, m, d := serviceDate.Date()
	o.ServiceDate = time.Date(y, m, d, 0, 0, 0, 0, p.loc)
	o.Status = model.Status(status)
	o.WeatherOrigin = model.Weather(wxFrom)
	o.WeatherDestination = model.Weather(wxTo)
	o.ScheduledDeparture = schedDep.In(p.loc)
	o.ScheduledArrival = schedArr.In(p.loc)
	o.ActualDeparture = p.nullTime(actualDep)
	o.ActualArrival = p.nullTime(actualArr)
	o.CreatedAt = createdAt.In(p.loc)
	o.UpdatedAt = updatedAt.In(p.loc)
	return o, nil
}

func (p *Postgres) nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.In(p.loc)
	return &v
}

func nullable(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func (p *Postgres) queryOccurrences(ctx context.Context, query string, args ...interface{}) ([]model.FlightOccurrence, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FlightOccurrence
	for rows.Next() {
		o, err := p.scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) OccurrencesForDate(ctx context.Context, date time.Time) ([]model.FlightOccurrence, error) {
	occs, err := p.queryOccurrences(ctx,
		`SELECT `+occurrenceColumns+` FROM flight_occurrences WHERE service_date = $1::date`,
		utils.DateKey(date))
	if err != nil {
		return nil, fmt.Errorf("query occurrences for %s: %w", utils.DateKey(date), err)
	}
	return occs, nil
}

// InsertOccurrences writes the whole slice in one transaction with a single
// multi-row INSERT. Callers chunk large batches.
func (p *Postgres) InsertOccurrences(ctx context.Context, occs []model.FlightOccurrence) (int, error) {
	if len(occs) == 0 {
		return 0, nil
	}

	now := time.Now()
	var (
		b    strings.Builder
		args = make([]interface{}, 0, len(occs)*occurrenceColumnCount)
	)
	b.WriteString(`INSERT INTO flight_occurrences (` + occurrenceColumns + `) VALUES `)
	for i, o := range occs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for c := 0; c < occurrenceColumnCount; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*occurrenceColumnCount+c+1)
		}
		b.WriteString(")")

		id := o.ID
		if id == "" {
			id = uuid.NewString()
		}
		created := o.CreatedAt
		if created.IsZero() {
			created = now
		}
		args = append(args,
			id, o.TemplateID, utils.DateKey(o.ServiceDate),
			o.Flight.FlightNumber, o.Flight.Airline, o.Flight.Origin, o.Flight.Destination,
			o.Flight.OriginCity, o.Flight.DestinationCity, o.Flight.AircraftType, o.Flight.Duration,
			string(o.Status), o.ScheduledDeparture, o.ScheduledArrival,
			nullable(o.ActualDeparture), nullable(o.ActualArrival),
			o.AircraftRegistration, o.Gate, o.Terminal,
			string(o.WeatherOrigin), string(o.WeatherDestination),
			o.Perturbed, o.Delayed, created, now,
		)
	}
	b.WriteString(` ON CONFLICT (template_id, service_date) DO NOTHING`)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	res, err := tx.ExecContext(ctx, b.String(), args...)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("insert %d occurrences: %w", len(occs), err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (p *Postgres) UpdateProgress(ctx context.Context, id string, pr model.Progress, at time.Time) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE flight_occurrences
		SET status = $1, actual_departure = $2, actual_arrival = $3, delayed = $4, perturbed = $5, updated_at = $6
		WHERE id = $7`,
		string(pr.Status), nullable(pr.ActualDeparture), nullable(pr.ActualArrival), pr.Delayed, pr.Perturbed, at, id)
	if err != nil {
		return fmt.Errorf("update occurrence %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (p *Postgres) ListOccurrences(ctx context.Context, q model.ListQuery) ([]model.FlightOccurrence, error) {
	var (
		where = []string{"service_date = $1::date"}
		args  = []interface{}{utils.DateKey(q.Date)}
	)
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		args = append(args, "%"+likeEscaper.Replace(s)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(flight_number ILIKE $%[1]d OR origin ILIKE $%[1]d OR destination ILIKE $%[1]d OR origin_city ILIKE $%[1]d OR destination_city ILIKE $%[1]d)", n))
	}

	query := `SELECT ` + occurrenceColumns + ` FROM flight_occurrences WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY scheduled_departure, flight_number`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	occs, err := p.queryOccurrences(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	return occs, nil
}

func (p *Postgres) GetOccurrence(ctx context.Context, id string) (*model.FlightOccurrence, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT `+occurrenceColumns+` FROM flight_occurrences WHERE id = $1`, id)
	o, err := p.scanOccurrence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get occurrence %s: %w", id, err)
	}
	return &o, nil
}

const templateColumns = `id, flight_number, airline, origin, destination, origin_city, destination_city,
	departure_time, arrival_time, operating_days, aircraft_type, duration`

func scanTemplate(row rowScanner) (model.FlightTemplate, error) {
	var (
		t    model.FlightTemplate
		days string
	)
	err := row.Scan(&t.ID, &t.FlightNumber, &t.Airline, &t.Origin, &t.Destination,
		&t.OriginCity, &t.DestinationCity, &t.DepartureTime, &t.ArrivalTime, &days,
		&t.AircraftType, &t.Duration)
	if err != nil {
		return t, err
	}
	t.OperatingDays, err = model.ParseDaySet(days)
	return t, err
}

// Templates returns every stored template. It lets Postgres act as a
// template source.
func (p *Postgres) Templates(ctx context.Context) ([]model.FlightTemplate, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM flight_templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var out []model.FlightTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) Template(ctx context.Context, id string) (*model.FlightTemplate, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM flight_templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}
	return &t, nil
}

// SaveTemplates upserts templates, used to seed the table from a file.
func (p *Postgres) SaveTemplates(ctx context.Context, templates []model.FlightTemplate) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO flight_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			flight_number = EXCLUDED.flight_number, airline = EXCLUDED.airline,
			origin = EXCLUDED.origin, destination = EXCLUDED.destination,
			origin_city = EXCLUDED.origin_city, destination_city = EXCLUDED.destination_city,
			departure_time = EXCLUDED.departure_time, arrival_time = EXCLUDED.arrival_time,
			operating_days = EXCLUDED.operating_days, aircraft_type = EXCLUDED.aircraft_type,
			duration = EXCLUDED.duration`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, t := range templates {
		_, err := stmt.ExecContext(ctx, t.ID, t.FlightNumber, t.Airline, t.Origin, t.Destination,
			t.OriginCity, t.DestinationCity, t.DepartureTime, t.ArrivalTime, t.OperatingDays.String(),
			t.AircraftType, t.Duration)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("save template %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}
