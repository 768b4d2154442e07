package arcgis

import "fmt"

// Feature is one raw upstream record: free-form attributes plus optional
// polygon geometry in the service's Esri JSON encoding.
type Feature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *Geometry      `json:"geometry,omitempty"`
}

// Geometry holds Esri JSON polygon rings. Each ring is a sequence of
// [x, y] vertices; some services append a z component, which is ignored.
type Geometry struct {
	Rings [][][]float64 `json:"rings,omitempty"`
}

// FeatureSet is one page of query results.
type FeatureSet struct {
	Features              []Feature `json:"features"`
	ExceededTransferLimit bool      `json:"exceededTransferLimit"`
}

// ServiceInfo is the layer metadata returned by the service root (?f=json).
type ServiceInfo struct {
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	GeometryType   string      `json:"geometryType"`
	MaxRecordCount int         `json:"maxRecordCount"`
	Fields         []FieldInfo `json:"fields"`
}

// FieldInfo describes one attribute field exposed by the layer.
type FieldInfo struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Alias string `json:"alias"`
}

// BBox is a WGS84 bounding box.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// Envelope renders the box in the xmin,ymin,xmax,ymax form the query
// endpoint expects.
func (b BBox) Envelope() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}

// QueryParams selects which features a query returns.
type QueryParams struct {
	// Where is the attribute filter; empty means all rows ("1=1").
	Where string
	// BBox adds an envelope intersection filter when non-nil.
	BBox *BBox
	// OutFields limits returned attributes; empty means all ("*").
	OutFields string
	// OmitGeometry drops geometry from the response.
	OmitGeometry bool
}

// esriError is the error object some services return inside an HTTP 200 body.
type esriError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *esriError) Error() string {
	return fmt.Sprintf("service error %d: %s", e.Code, e.Message)
}

// queryResponse is the wire shape of a /query response.
type queryResponse struct {
	Features              []Feature `json:"features"`
	ExceededTransferLimit bool      `json:"exceededTransferLimit"`
	Count                 *int      `json:"count,omitempty"`
}
