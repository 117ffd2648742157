package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

const (
	unknownDescription = "Description not found"
	unknownHierarchy   = "Unknown classification"
	remoteTimeout      = 3 * time.Second
	remoteCacheSize    = 512
)

// CodeInfo describes one ICD-9 code and where it sits in the hierarchy.
type CodeInfo struct {
	Description    string  `json:"description"`
	FullHierarchy  string  `json:"full_hierarchy"`
	ParentCategory *string `json:"parent_category"`
}

func unknownCode() CodeInfo {
	return CodeInfo{Description: unknownDescription, FullHierarchy: unknownHierarchy}
}

// Index maps ICD-9 codes to their descriptions, built from a codes.json hierarchy file.
type Index struct {
	codes map[string]CodeInfo
}

type hierarchyLevel struct {
	Code  string `json:"code"`
	Descr string `json:"descr"`
}

// LoadIndex reads a codes.json file: a list of hierarchy paths whose last level holds the code.
func LoadIndex(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open icd9 codes: %w", err)
	}
	defer f.Close()
	return ReadIndex(f)
}

func ReadIndex(r io.Reader) (*Index, error) {
	var entries [][]json.RawMessage
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode icd9 codes: %w", err)
	}

	idx := &Index{codes: make(map[string]CodeInfo, len(entries))}
	for _, entry := range entries {
		var levels []hierarchyLevel
		for _, raw := range entry {
			var lvl hierarchyLevel
			// Non-object levels carry no description.
			if err := json.Unmarshal(raw, &lvl); err != nil {
				continue
			}
			levels = append(levels, lvl)
		}
		if len(levels) == 0 {
			continue
		}
		leaf := levels[len(levels)-1]
		if leaf.Code == "" {
			continue
		}
		if _, seen := idx.codes[leaf.Code]; seen {
			continue
		}

		var path []string
		for _, lvl := range levels {
			if d := strings.TrimSpace(lvl.Descr); d != "" {
				path = append(path, d)
			}
		}
		info := CodeInfo{
			Description:   leaf.Descr,
			FullHierarchy: strings.Join(path, " > "),
		}
		if info.Description == "" {
			info.Description = "Unknown"
		}
		if len(path) > 1 {
			parent := path[len(path)-2]
			info.ParentCategory = &parent
		}
		idx.codes[leaf.Code] = info
	}
	return idx, nil
}

func EmptyIndex() *Index {
	return &Index{codes: map[string]CodeInfo{}}
}

func (i *Index) Lookup(code string) (CodeInfo, bool) {
	if i == nil {
		return CodeInfo{}, false
	}
	info, ok := i.codes[code]
	return info, ok
}

func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.codes)
}

// RemoteLookup resolves codes missing from the local index against the NLM Clinical Tables API.
type RemoteLookup struct {
	baseURL string
	client  *http.Client
	cache   *lru.Cache[string, CodeInfo]
}

func NewRemoteLookup(baseURL string, client *http.Client) (*RemoteLookup, error) {
	if client == nil {
		client = &http.Client{Timeout: remoteTimeout}
	}
	cache, err := lru.New[string, CodeInfo](remoteCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create icd9 cache: %w", err)
	}
	return &RemoteLookup{baseURL: baseURL, client: client, cache: cache}, nil
}

// Describe returns the remote description for code. Misses and failures yield the unknown entry.
func (r *RemoteLookup) Describe(ctx context.Context, code string) CodeInfo {
	if r == nil || r.baseURL == "" {
		return unknownCode()
	}
	if info, ok := r.cache.Get(code); ok {
		return info
	}

	info, err := r.fetch(ctx, code)
	if err != nil {
		log.Warn().Err(err).Str("icd9_code", code).Msg("ICD-9 remote lookup failed")
		return unknownCode()
	}
	r.cache.Add(code, info)
	return info
}

var errNoMatch = errors.New("no matching code")

func (r *RemoteLookup) fetch(ctx context.Context, code string) (CodeInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("terms", code)
	q.Set("sf", "code_dx")
	q.Set("df", "code_dx,long_name")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return CodeInfo{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return CodeInfo{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return CodeInfo{}, fmt.Errorf("lookup returned %s", resp.Status)
	}

	// [total, [codes], extra, [[code, long_name], ...]]
	var body []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return CodeInfo{}, fmt.Errorf("decode: %w", err)
	}
	if len(body) < 4 {
		return unknownCode(), nil
	}
	var rows [][]string
	if err := json.Unmarshal(body[3], &rows); err != nil {
		return CodeInfo{}, fmt.Errorf("decode display rows: %w", err)
	}

	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		if normaliseCode(row[0]) == normaliseCode(code) {
			return CodeInfo{Description: row[1], FullHierarchy: row[1]}, nil
		}
	}
	log.Debug().Err(errNoMatch).Str("icd9_code", code).Msg("ICD-9 code not found remotely")
	return unknownCode(), nil
}

func normaliseCode(c string) string {
	return strings.TrimRight(strings.TrimSpace(c), ".")
}
