package cdn

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/italolelis/asset_patcher/internal/delivery"
	"github.com/klauspost/compress/zstd"
)

// Catalog lists the bundles that make up every group.
type Catalog struct {
	Version string              `json:"version"`
	Groups  map[string][]Bundle `json:"groups"`
}

// Bundle is a single downloadable file of a group.
type Bundle struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Hash string `json:"hash"`
}

// CacheName is the file name a bundle is stored under in the local cache.
// A new hash yields a new name, so stale copies are never mistaken for current ones.
func (b Bundle) CacheName() string {
	return fmt.Sprintf("%016x.bundle", xxhash.Sum64String(b.Name+"$"+b.Hash))
}

func decodeCatalog(r io.Reader, source string, compressed bool) (*Catalog, error) {
	if compressed {
		zReader, err := zstd.NewReader(r)
		if err != nil {
			return nil, &delivery.CatalogError{Source: source, Reason: "invalid zstd stream", Err: err}
		}
		defer zReader.Close()

		r = zReader
	}

	var catalog Catalog
	if err := json.NewDecoder(r).Decode(&catalog); err != nil {
		return nil, &delivery.CatalogError{Source: source, Reason: "decode failed", Err: err}
	}

	if catalog.Groups == nil {
		return nil, &delivery.CatalogError{Source: source, Reason: "catalog has no groups"}
	}

	for group, bundles := range catalog.Groups {
		for _, b := range bundles {
			if b.Size < 0 {
				return nil, &delivery.CatalogError{
					Source: source,
					Reason: fmt.Sprintf("bundle %s of group %s has negative size %d", b.Name, group, b.Size),
				}
			}

			if b.Name == "" || strings.Contains(b.Name, "..") {
				return nil, &delivery.CatalogError{
					Source: source,
					Reason: fmt.Sprintf("group %s has an invalid bundle name %q", group, b.Name),
				}
			}
		}
	}

	return &catalog, nil
}
