package nse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rank-observer/src/helpers"
	"rank-observer/src/interfaces"
	"rank-observer/src/logger"
	"rank-observer/src/models"

	"github.com/kaptinlin/jsonrepair"
)

// IndexSource fetches the constituents table of one NSE index.
type IndexSource struct {
	SourceConfig models.MSourceConfig
	APIPath      string
	Network      interfaces.INetworkManager
	Logger       *logger.Logger
	Attempts     int
	RetryDelay   time.Duration
	Now          func() time.Time
}

// -----------------------------------------------------------------------------

func NewIndexSource(cfg *models.MConfig, sourceCfg models.MSourceConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *IndexSource {
	return &IndexSource{
		SourceConfig: sourceCfg,
		APIPath:      cfg.Network.APIPath,
		Network:      netMgr,
		Logger:       log.Named("NSE-" + sourceCfg.Name),
		Attempts:     2,
		RetryDelay:   2 * time.Second,
		Now:          time.Now,
	}
}

// -----------------------------------------------------------------------------

func (s *IndexSource) Name() string {
	return s.SourceConfig.Name
}

// -----------------------------------------------------------------------------

func (s *IndexSource) Index() string {
	return s.SourceConfig.Index
}

// -----------------------------------------------------------------------------

// FetchSnapshot requests the index table and decodes it into a snapshot.
// Malformed payloads are retried as a whole request. Transport failures are
// not, the session already retried them.
func (s *IndexSource) FetchSnapshot(ctx context.Context) (*models.MSnapshot, error) {
	params := map[string]string{"index": s.SourceConfig.Index}

	snap, err := helpers.RetryWithBackoffIf(ctx, "fetch "+s.SourceConfig.Index, s.Attempts, s.RetryDelay, s.Logger, isDecodeError,
		func() (*models.MSnapshot, error) {
			body, err := s.Network.Get(ctx, s.APIPath, params)
			if err != nil {
				return nil, err
			}
			return ParseIndexResponse(body, s.SourceConfig.Name, s.SourceConfig.Columns, s.Now())
		})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch index '%s': %w", s.SourceConfig.Index, err)
	}

	s.Logger.Info("Fetched %d securities for %s", snap.Len(), s.SourceConfig.Index)
	return snap, nil
}

// -----------------------------------------------------------------------------

func isDecodeError(err error) bool {
	var dsErr *helpers.DataSourceError
	return errors.As(err, &dsErr)
}

// -----------------------------------------------------------------------------

// ParseIndexResponse decodes `{"data":[...]}` or a bare array of records.
// Numbers stay json.Number so prices keep their exact text. When columns is
// not empty only those fields are kept, in that order.
func ParseIndexResponse(body []byte, source string, columns []string, fetchedAt time.Time) (*models.MSnapshot, error) {
	records, err := decodeRecords(body)
	if err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(string(body))
		if repairErr != nil {
			return nil, helpers.NewDataSourceError("undecodable index response", err)
		}
		records, err = decodeRecords([]byte(repaired))
		if err != nil {
			return nil, helpers.NewDataSourceError("undecodable index response", err)
		}
	}

	if len(columns) == 0 {
		return models.NewSnapshot(source, fetchedAt, records), nil
	}

	present := make(map[string]bool, len(columns))
	kept := make([]map[string]interface{}, len(records))
	for i, rec := range records {
		out := make(map[string]interface{}, len(columns))
		for _, c := range columns {
			if v, ok := rec[c]; ok {
				out[c] = v
				present[c] = true
			}
		}
		kept[i] = out
	}

	ordered := make([]string, 0, len(columns))
	for _, c := range columns {
		if present[c] {
			ordered = append(ordered, c)
		}
	}

	return &models.MSnapshot{
		Source:    source,
		FetchedAt: fetchedAt,
		Columns:   ordered,
		Records:   kept,
	}, nil
}

// -----------------------------------------------------------------------------

func decodeRecords(body []byte) ([]map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	var items []interface{}
	switch v := raw.(type) {
	case map[string]interface{}:
		data, ok := v["data"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("response has no data array")
		}
		items = data
	case []interface{}:
		items = v
	default:
		return nil, fmt.Errorf("unexpected response type %T", raw)
	}

	records := make([]map[string]interface{}, 0, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("record %d is %T, not an object", i, item)
		}
		records = append(records, rec)
	}
	return records, nil
}
