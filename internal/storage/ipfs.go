package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/keepr/internal/netx"
)

type IPFSConfig struct {
	// APIURL is the pinning service base, e.g. https://api.pinata.cloud.
	APIURL string
	// GatewayURL serves /ipfs/<cid>.
	GatewayURL string
	JWT        string
	Timeout    time.Duration
}

// IPFSStore pins envelopes through a pinning-service HTTP API and reads them
// back through a gateway. Addresses are whatever CID the service assigns.
type IPFSStore struct {
	cfg    IPFSConfig
	client *http.Client
}

func NewIPFSStore(cfg IPFSConfig) *IPFSStore {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.GatewayURL = strings.TrimRight(cfg.GatewayURL, "/")
	return &IPFSStore{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type pinMetadata struct {
	Name      string            `json:"name"`
	KeyValues map[string]string `json:"keyvalues"`
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinListResponse struct {
	Rows []struct {
		IpfsPinHash string      `json:"ipfs_pin_hash"`
		Size        int64       `json:"size"`
		DatePinned  time.Time   `json:"date_pinned"`
		Metadata    pinMetadata `json:"metadata"`
	} `json:"rows"`
}

func (s *IPFSStore) authorize(req *http.Request) {
	if s.cfg.JWT != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.JWT)
	}
}

func (s *IPFSStore) Upload(ctx context.Context, data []byte, meta Metadata) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	name := meta.Name
	if name == "" {
		name = "envelope.json"
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}

	md, err := json.Marshal(pinMetadata{Name: name, KeyValues: meta.Tags})
	if err != nil {
		return "", err
	}
	if err := w.WriteField("pinataMetadata", string(md)); err != nil {
		return "", err
	}
	if err := w.WriteField("pinataOptions", `{"cidVersion":1}`); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	s.authorize(req)

	var resp pinResponse
	if err := netx.FetchJSON(s.client, req, &resp); err != nil {
		return "", fmt.Errorf("pin file: %w", err)
	}
	if resp.IpfsHash == "" {
		return "", errors.New("pin file: empty hash in response")
	}
	return resp.IpfsHash, nil
}

func (s *IPFSStore) Download(ctx context.Context, address string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.GatewayURL+"/ipfs/"+url.PathEscape(address), nil)
	if err != nil {
		return nil, err
	}
	s.authorize(req)

	data, err := netx.Fetch(s.client, req)
	if err != nil {
		var se *netx.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("gateway get: %w", err)
	}
	return data, nil
}

// List queries pinList once per filter key, since the service ANDs
// keyvalue conditions, and merges the results.
func (s *IPFSStore) List(ctx context.Context, filter Filter) ([]Pin, error) {
	if len(filter.Any) == 0 {
		return s.pinList(ctx, "")
	}

	seen := make(map[string]bool)
	var out []Pin
	for k, v := range filter.Any {
		cond, err := json.Marshal(map[string]any{k: map[string]string{"value": v, "op": "eq"}})
		if err != nil {
			return nil, err
		}
		pins, err := s.pinList(ctx, string(cond))
		if err != nil {
			return nil, err
		}
		for _, p := range pins {
			if !seen[p.Address] {
				seen[p.Address] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (s *IPFSStore) pinList(ctx context.Context, keyvalues string) ([]Pin, error) {
	q := url.Values{}
	q.Set("status", "pinned")
	q.Set("pageLimit", "1000")
	if keyvalues != "" {
		q.Set("metadata[keyvalues]", keyvalues)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.APIURL+"/data/pinList?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	s.authorize(req)

	var resp pinListResponse
	if err := netx.FetchJSON(s.client, req, &resp); err != nil {
		return nil, fmt.Errorf("pin list: %w", err)
	}

	out := make([]Pin, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		out = append(out, Pin{
			Address:   r.IpfsPinHash,
			Name:      r.Metadata.Name,
			Tags:      r.Metadata.KeyValues,
			Size:      r.Size,
			CreatedAt: r.DatePinned,
		})
	}
	return out, nil
}
