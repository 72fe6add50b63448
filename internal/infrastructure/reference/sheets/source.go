// Package sheets reads the reference table from a Google Sheets range.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
	"github.com/kirillkom/vinuni-assistant/internal/infrastructure/resilience"
)

const operation = "sheets.values_get"

type Options struct {
	SpreadsheetID   string
	Range           string
	CredentialsJSON string
	APIKey          string
	// Endpoint overrides the API root, e.g. for a proxy or an emulator.
	Endpoint      string
	Executor      *resilience.Executor
	ClientOptions []option.ClientOption
}

type Source struct {
	service       *sheetsapi.Service
	spreadsheetID string
	readRange     string
	exec          *resilience.Executor
}

func New(ctx context.Context, opts Options) (*Source, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" || strings.TrimSpace(opts.Range) == "" {
		return nil, domain.WrapError(domain.ErrMissingConfig, "new sheets source", fmt.Errorf("spreadsheet id and range are required"))
	}

	clientOptions := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope)}
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case strings.TrimSpace(opts.APIKey) != "":
		clientOptions = append(clientOptions, option.WithAPIKey(opts.APIKey))
	}
	if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	clientOptions = append(clientOptions, opts.ClientOptions...)

	service, err := sheetsapi.NewService(ctx, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	if opts.Executor == nil {
		opts.Executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Source{
		service:       service,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		readRange:     strings.TrimSpace(opts.Range),
		exec:          opts.Executor,
	}, nil
}

// FetchRows returns every row in the configured range as strings.
func (s *Source) FetchRows(ctx context.Context) ([][]string, error) {
	var values *sheetsapi.ValueRange
	err := s.exec.Execute(ctx, operation, func(callCtx context.Context) error {
		var callErr error
		values, callErr = s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(callCtx).Do()
		return callErr
	}, classifySheetsError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded(err)
	}

	rows := make([][]string, 0, len(values.Values))
	for _, raw := range values.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, cellString(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func classifySheetsError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if resilience.IsAttemptTimeout(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func wrapTemporaryIfNeeded(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
		return domain.WrapError(domain.ErrUnauthorized, operation, err)
	}
	if classifySheetsError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
