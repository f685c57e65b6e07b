package decode

import (
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ccadbAKIReportURL publishes, per intermediate certificate, the Authority Key Identifier and
// owning CA organization — the same report the upstream certstream server
// downloads to label each certificate's issuing CA.
const ccadbAKIReportURL = "https://ccadb.my.salesforce-sites.com/ccadb/PublicAllIntermediateCertsIncTechConstraintsCSVFormatv2"

// maxCSVDownloadRetries and the retry backoff mirror the upstream
// downloader's fixed 3-attempt, exponential-backoff behavior.
const maxCSVDownloadRetries = 3

// DownloadCAOwners fetches the CCADB report and builds the Authority Key
// Identifier → CA owner map consumed by Options.CAOwners. keyCol and
// ownerCol are the zero-based columns holding the AKI and owner name.
func DownloadCAOwners(ctx context.Context, keyCol, ownerCol int) (map[string]string, error) {
	return downloadAndParseCSV(ctx, ccadbAKIReportURL, keyCol, ownerCol, true)
}

func downloadAndParseCSV(ctx context.Context, url string, keyCol, ownerCol int, skipHeader bool) (map[string]string, error) {
	delay := 1 * time.Second

	var lastErr error

	for attempt := 1; attempt <= maxCSVDownloadRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("decode: build CCADB request: %w", err)
		}

		client := &http.Client{Timeout: 30 * time.Second}

		resp, err := client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			parsed, parseErr := parseCSVBody(resp, keyCol, ownerCol, skipHeader)
			resp.Body.Close()

			if parseErr == nil {
				return parsed, nil
			}

			lastErr = parseErr
		} else {
			if err != nil {
				lastErr = err
			} else {
				lastErr = fmt.Errorf("decode: CCADB fetch status %d", resp.StatusCode)
				resp.Body.Close()
			}
		}

		if attempt == maxCSVDownloadRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
	}

	return nil, fmt.Errorf("decode: download CCADB report after %d attempts: %w", maxCSVDownloadRetries, lastErr)
}

func parseCSVBody(resp *http.Response, keyCol, ownerCol int, skipHeader bool) (map[string]string, error) {
	result := make(map[string]string)

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1

	first := true

	for {
		record, err := reader.Read()
		if err != nil {
			break
		}

		if first && skipHeader {
			first = false
			continue
		}
		first = false

		if len(record) <= keyCol || len(record) <= ownerCol {
			continue
		}

		rawKey := strings.TrimSpace(record[keyCol])
		owner := strings.TrimSpace(record[ownerCol])

		if rawKey == "" || owner == "" {
			continue
		}

		// The CCADB report's AKI column is base64, but caOwnerFor looks up
		// by lowercase hex (matching x509.Certificate.AuthorityKeyId's
		// natural encoding) — decode before re-encoding as hex.
		decoded, err := base64.StdEncoding.DecodeString(rawKey)
		if err != nil {
			continue
		}

		key := strings.ToLower(hex.EncodeToString(decoded))

		result[key] = owner
	}

	return result, nil
}
