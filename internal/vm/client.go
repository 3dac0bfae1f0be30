package vm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rtm0/aeolus/internal/era5"
)

// Client is a Victoria Metrics client capable of inserting statistics
// records via various protocols.
type Client struct {
	logger       *slog.Logger
	httpCli      *http.Client
	insertURL    string
	metricPrefix string
	statNames    []string
	recToText    recToTextFunc
}

const (
	metricPrefixRE = "^[a-zA-Z0-9]+$"
	statNameRE     = "^[a-zA-Z0-9_]+$"
)

// NewClient creates a new VM client. statNames fixes the order of the
// metric columns for the CSV import API.
func NewClient(logger *slog.Logger, insertURL string, maxConns int, metricPrefix string, statNames []string) (*Client, error) {
	url, err := url.Parse(insertURL)
	if err != nil {
		return nil, err
	}

	if err := match(metricPrefixRE, "metric prefix", metricPrefix); err != nil {
		return nil, err
	}
	if len(statNames) == 0 {
		return nil, fmt.Errorf("no statistics to insert")
	}
	for _, name := range statNames {
		if err := match(statNameRE, "statistic", name); err != nil {
			return nil, err
		}
	}

	apiParams := apiParamsFuncs[url.Path]
	if apiParams == nil {
		return nil, fmt.Errorf("inserting into %q is not supported", insertURL)
	}
	q := url.Query()
	for name, value := range apiParams(metricPrefix, statNames) {
		q.Add(name, value)
	}
	url.RawQuery = q.Encode()

	recToText := recToTextFuncs[url.Path]
	if recToText == nil {
		return nil, fmt.Errorf("inserting into %q is not supported", insertURL)
	}

	return &Client{
		logger: logger,
		httpCli: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        maxConns,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: maxConns,
				MaxConnsPerHost:     maxConns,
			},
		},
		insertURL:    url.String(),
		metricPrefix: metricPrefix,
		statNames:    statNames,
		recToText:    recToText,
	}, nil
}

func match(re, what, s string) error {
	matches, err := regexp.MatchString(re, s)
	if err != nil {
		return err
	}
	if !matches {
		return fmt.Errorf("%s %q does not match %q regular expression", what, s, re)
	}
	return nil
}

// Insert inserts records into Victoria Metrics.
func (c *Client) Insert(ctx context.Context, recs []era5.Record) error {
	body := recsToText(recs, c.metricPrefix, c.statNames, c.recToText)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.insertURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	res, err := c.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("could not post data: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	if _, err := io.Copy(io.Discard, res.Body); err != nil {
		c.logger.Error("Failed to drain response body", "err", err)
	}
	return nil
}

type apiParamsFunc func(metricPrefix string, statNames []string) map[string]string

var apiParamsFuncs = map[string]apiParamsFunc{
	"/influx/write":        influxDBAPIParams,
	"/influx/api/v2/write": influxDBAPIParams,
	"/write":               influxDBAPIParams,
	"/api/v2/write":        influxDBAPIParams,
	"/api/v1/import/csv":   csvAPIParams,
}

func influxDBAPIParams(string, []string) map[string]string {
	return map[string]string{"precision": "ms"}
}

func csvAPIParams(metricPrefix string, statNames []string) map[string]string {
	cols := []string{"1:time:unix_ms", "2:label:var"}
	for i, name := range statNames {
		cols = append(cols, fmt.Sprintf("%d:metric:%s_%s", i+3, metricPrefix, name))
	}
	return map[string]string{"format": strings.Join(cols, ",")}
}

type recToTextFunc func(sb *strings.Builder, r *era5.Record, metricPrefix string, statNames []string)

// recsToText converts multiple records to text.
func recsToText(recs []era5.Record, metricPrefix string, statNames []string, recToText recToTextFunc) io.Reader {
	var sb strings.Builder
	for _, r := range recs {
		recToText(&sb, &r, metricPrefix, statNames)
		sb.WriteString("\n")
	}
	return strings.NewReader(sb.String())
}

var recToTextFuncs = map[string]recToTextFunc{
	"/influx/write":        recToInfluxDB,
	"/influx/api/v2/write": recToInfluxDB,
	"/write":               recToInfluxDB,
	"/api/v2/write":        recToInfluxDB,
	"/api/v1/import/csv":   recToCSV,
}

// recToInfluxDB converts a record into InfluxDB line protocol v2 and appends
// it to the string builder. Missing values are left out, and a record
// without values produces no line.
func recToInfluxDB(sb *strings.Builder, r *era5.Record, metricPrefix string, statNames []string) {
	var fields []string
	for _, name := range statNames {
		if v, ok := r.Stat(name); ok && !math.IsNaN(v) {
			fields = append(fields, name+"="+formatFloat(v))
		}
	}
	if len(fields) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s,var=%s %s %d", metricPrefix, tagEscaper.Replace(r.Variable), strings.Join(fields, ","), r.Timestamp)
}

// tagEscaper escapes tag values for the line protocol.
var tagEscaper = strings.NewReplacer(",", `\,`, " ", `\ `, "=", `\=`)

// recToCSV converts a record into a CSV record and appends it to the string
// builder. Missing values are left empty.
func recToCSV(sb *strings.Builder, r *era5.Record, _ string, statNames []string) {
	fmt.Fprintf(sb, "%d,%s", r.Timestamp, r.Variable)
	for _, name := range statNames {
		sb.WriteString(",")
		if v, ok := r.Stat(name); ok && !math.IsNaN(v) {
			sb.WriteString(formatFloat(v))
		}
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
