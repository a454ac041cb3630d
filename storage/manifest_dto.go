package storage

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
)

type ManifestObject struct {
	Key     string `json:"key"`
	Index   int    `json:"index"`
	NumRows int64  `json:"num_rows"`
	Size    int    `json:"size"`
}

func (obj *ManifestObject) Validate() error {
	if obj.Key == "" {
		return fmt.Errorf("%w: key is required", ErrManifestInvalid)
	}
	if obj.Index < 1 {
		return fmt.Errorf("%w: index must be at least 1", ErrManifestInvalid)
	}
	if obj.NumRows < 0 {
		return fmt.Errorf("%w: num rows must not be negative", ErrManifestInvalid)
	}
	if obj.Size < 0 {
		return fmt.Errorf("%w: size must not be negative", ErrManifestInvalid)
	}
	return nil
}

// PartManifest lists the output parts produced by one run, in part order.
type PartManifest struct {
	Id        string           `json:"id"`
	SourceKey string           `json:"source_key"`
	Format    string           `json:"format"`
	Mode      string           `json:"mode"`
	NumRows   int64            `json:"num_rows"`
	Objects   []ManifestObject `json:"objects"`
}

func NewManifestFromBytes(data []byte) (*PartManifest, error) {
	manifest := &PartManifest{}
	err := json.Unmarshal(data, manifest)
	if err != nil {
		return nil, err
	}

	manifest.SortObjects()
	if ifErr := manifest.Validate(); ifErr != nil {
		return nil, ifErr
	}

	return manifest, nil
}

func (obj *PartManifest) ToBytes() ([]byte, error) {
	return json.Marshal(obj)
}

func (obj *PartManifest) SortObjects() {
	slices.SortFunc(obj.Objects, func(a, b ManifestObject) int {
		return cmp.Compare(a.Index, b.Index)
	})
}

func (obj *PartManifest) Validate() error {
	if obj.Id == "" {
		return fmt.Errorf("%w: id is required", ErrManifestInvalid)
	}
	if obj.SourceKey == "" {
		return fmt.Errorf("%w: source key is required", ErrManifestInvalid)
	}
	if len(obj.Objects) == 0 {
		return fmt.Errorf("%w: at least one object is required", ErrManifestInvalid)
	}

	var numRows int64
	for idx, obj := range obj.Objects {
		if ifErr := obj.Validate(); ifErr != nil {
			return fmt.Errorf("%w: object at index %d is invalid: %v", ErrManifestInvalid, idx, ifErr)
		}
		// parts are numbered from 1 without gaps
		if idx+1 != obj.Index {
			return fmt.Errorf("%w: object at index %d has invalid index %d", ErrManifestInvalid, idx, obj.Index)
		}
		numRows += obj.NumRows
	}
	if numRows != obj.NumRows {
		return fmt.Errorf("%w: objects hold %d rows, manifest states %d", ErrManifestInvalid, numRows, obj.NumRows)
	}

	return nil
}
