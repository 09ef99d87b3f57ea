package models

// IndexName enumerates the three schemas spec.md §3/§4.3 requires.
type IndexName string

const (
	IndexCSV     IndexName = "motorcycle-csv"
	IndexPDF     IndexName = "motorcycle-pdf"
	IndexUnified IndexName = "motorcycle-unified"
)

// FieldKind is the lexical/vector field typing an index schema declares
// per field, enough to drive hybrid search planning without depending on
// any particular index engine's SDK types.
type FieldKind string

const (
	FieldKeyword FieldKind = "keyword"
	FieldText    FieldKind = "text"
	FieldNumber  FieldKind = "number"
	FieldVector  FieldKind = "vector"
)

// FieldDef describes one field of an index schema.
type FieldDef struct {
	Name       string    `json:"name"`
	Kind       FieldKind `json:"kind"`
	Filterable bool      `json:"filterable"`
}

// IndexSchema is the authoritative, versioned description of one index.
// Per spec.md §9's open question, VectorDim here is the single source of
// truth for the dimension every processor and agent must honour.
type IndexSchema struct {
	Name      IndexName  `json:"name"`
	Version   int        `json:"version"`
	Fields    []FieldDef `json:"fields"`
	VectorDim int        `json:"vector_dim"`
}

// DefaultVectorDim is the dimension of the standard embedding model
// (spec.md §3); callers should prefer reading it off an already-created
// IndexSchema rather than this constant once one exists.
const DefaultVectorDim = 3072

// CSVSchema returns the CSV index schema: strong Make/Model/Year mapping
// plus an open key/value bag and the dense-vector field.
func CSVSchema(vectorDim int) IndexSchema {
	return IndexSchema{
		Name:    IndexCSV,
		Version: 1,
		Fields: []FieldDef{
			{Name: "id", Kind: FieldKeyword},
			{Name: "make", Kind: FieldKeyword, Filterable: true},
			{Name: "model", Kind: FieldKeyword, Filterable: true},
			{Name: "year", Kind: FieldNumber, Filterable: true},
			{Name: "content", Kind: FieldText},
			{Name: "properties", Kind: FieldText},
			{Name: "content_vector", Kind: FieldVector},
		},
		VectorDim: vectorDim,
	}
}

// PDFSchema returns the PDF index schema: adds section/page/chunk-type.
func PDFSchema(vectorDim int) IndexSchema {
	return IndexSchema{
		Name:    IndexPDF,
		Version: 1,
		Fields: []FieldDef{
			{Name: "id", Kind: FieldKeyword},
			{Name: "content", Kind: FieldText},
			{Name: "section", Kind: FieldKeyword, Filterable: true},
			{Name: "page_number", Kind: FieldNumber, Filterable: true},
			{Name: "chunk_type", Kind: FieldKeyword, Filterable: true},
			{Name: "content_vector", Kind: FieldVector},
		},
		VectorDim: vectorDim,
	}
}

// UnifiedSchema returns the superset schema the multi-source agent queries.
func UnifiedSchema(vectorDim int) IndexSchema {
	return IndexSchema{
		Name:    IndexUnified,
		Version: 1,
		Fields: []FieldDef{
			{Name: "id", Kind: FieldKeyword},
			{Name: "title", Kind: FieldText},
			{Name: "content", Kind: FieldText},
			{Name: "type", Kind: FieldKeyword, Filterable: true},
			{Name: "make", Kind: FieldKeyword, Filterable: true},
			{Name: "model", Kind: FieldKeyword, Filterable: true},
			{Name: "year", Kind: FieldNumber, Filterable: true},
			{Name: "section", Kind: FieldKeyword, Filterable: true},
			{Name: "page_number", Kind: FieldNumber, Filterable: true},
			{Name: "source_url", Kind: FieldKeyword},
			{Name: "content_vector", Kind: FieldVector},
		},
		VectorDim: vectorDim,
	}
}
