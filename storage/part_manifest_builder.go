package storage

type PartManifestBuilder struct {
	manifest *PartManifest
	index    int
}

func NewPartManifestBuilder(runId, sourceKey, format, mode string) *PartManifestBuilder {
	return &PartManifestBuilder{
		manifest: &PartManifest{
			Id:        runId,
			SourceKey: sourceKey,
			Format:    format,
			Mode:      mode,
			Objects:   []ManifestObject{},
		},
	}
}

func (obj *PartManifestBuilder) AddPart(key string, numRows int64, size int) {
	obj.index++
	obj.manifest.Objects = append(obj.manifest.Objects, ManifestObject{
		Key:     key,
		Index:   obj.index,
		NumRows: numRows,
		Size:    size,
	})
	obj.manifest.NumRows += numRows
}

func (obj *PartManifestBuilder) Manifest() *PartManifest {
	return obj.manifest
}
