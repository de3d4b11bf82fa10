package etl

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
)

// LoadRecords reads the full record set for a source, eagerly. Dispatch is
// closed: Validate has already rejected unknown source types, this switch
// is the backstop.
func LoadRecords(ctx context.Context, src SourceConfig) ([]Record, error) {
	switch src.Type {
	case SourceCSV:
		return loadCSV(src)
	case SourceJSON:
		return loadJSONFile(src)
	case SourcePostgres:
		return loadPostgres(ctx, src)
	case SourceAPI:
		return loadAPI(ctx, src)
	default:
		return nil, &ConfigurationError{
			Field:  "source.type",
			Reason: fmt.Sprintf("unsupported source type %q", src.Type),
		}
	}
}

func loadCSV(src SourceConfig) ([]Record, error) {
	path := src.Connection["path"]
	if path == "" {
		return nil, &ConfigurationError{Field: "source.connection.path", Reason: "required for csv source"}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceReadError{SourceType: string(src.Type), Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, &SourceReadError{SourceType: string(src.Type), Err: fmt.Errorf("read header: %w", err)}
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &SourceReadError{SourceType: string(src.Type), Err: err}
		}
		record := make(Record, len(header))
		for i, name := range header {
			if i < len(row) {
				record[name] = row[i]
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func loadJSONFile(src SourceConfig) ([]Record, error) {
	path := src.Connection["path"]
	if path == "" {
		return nil, &ConfigurationError{Field: "source.connection.path", Reason: "required for json source"}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &SourceReadError{SourceType: string(src.Type), Err: err}
	}
	return decodeJSONRecords(src, raw)
}

func loadPostgres(ctx context.Context, src SourceConfig) ([]Record, error) {
	if src.Query == "" {
		return nil, &ConfigurationError{Field: "source.query", Reason: "required for postgres source"}
	}
	dsn := src.Connection["dsn"]
	if dsn == "" {
		dsn = postgresDSN(src.Connection)
	}
	if dsn == "" {
		return nil, &ConfigurationError{Field: "source.connection", Reason: "dsn or host/database required for postgres source"}
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, &SourceReadError{SourceType: string(src.Type), Err: fmt.Errorf("connect: %w", err)}
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, src.Query)
	if err != nil {
		return nil, &SourceReadError{SourceType: string(src.Type), Err: fmt.Errorf("query: %w", err)}
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var records []Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, &SourceReadError{SourceType: string(src.Type), Err: err}
		}
		record := make(Record, len(fields))
		for i, fd := range fields {
			record[fd.Name] = values[i]
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, &SourceReadError{SourceType: string(src.Type), Err: err}
	}
	return records, nil
}

func loadAPI(ctx context.Context, src SourceConfig) ([]Record, error) {
	endpoint := src.Connection["url"]
	if endpoint == "" {
		return nil, &ConfigurationError{Field: "source.connection.url", Reason: "required for api source"}
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, &ConfigurationError{Field: "source.connection.url", Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &SourceReadError{SourceType: string(src.Type), Err: err}
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &SourceReadError{SourceType: string(src.Type), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &SourceReadError{
			SourceType: string(src.Type),
			Err:        fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint),
		}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SourceReadError{SourceType: string(src.Type), Err: err}
	}
	return decodeJSONRecords(src, raw)
}

func decodeJSONRecords(src SourceConfig, raw []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &SourceReadError{SourceType: string(src.Type), Err: fmt.Errorf("decode records: %w", err)}
	}
	return records, nil
}

func postgresDSN(conn map[string]string) string {
	host := conn["host"]
	database := conn["database"]
	if host == "" || database == "" {
		return ""
	}
	user := conn["user"]
	if user == "" {
		user = "postgres"
	}
	port := conn["port"]
	if port == "" {
		port = "5432"
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   url.User(user),
		Host:   host + ":" + port,
		Path:   "/" + database,
	}
	if pw := conn["password"]; pw != "" {
		u.User = url.UserPassword(user, pw)
	}
	return u.String()
}
