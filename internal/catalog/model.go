package catalog

// Product is a row in the products table.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Price       float64
	ImageURL    string
	Embedding   []float32
}

// Result is one ranked search hit as consumed by the retriever agent.
type Result struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Text       string  `json:"text"`
	Price      float64 `json:"price"`
	ImageURL   string  `json:"image_url"`
	Similarity float64 `json:"similarity"`
}

// TextQueryRequest is the wire request for POST /query/text.
type TextQueryRequest struct {
	Text       []string `json:"text"`
	Categories []string `json:"categories"`
	K          int      `json:"k"`
}

// ImageQueryRequest is the wire request for POST /query/image.
type ImageQueryRequest struct {
	Text        []string `json:"text"`
	ImageBase64 string   `json:"image_base64"`
	Categories  []string `json:"categories"`
	K           int      `json:"k"`
}

// QueryResponse is the parallel-array wire response of both query endpoints.
type QueryResponse struct {
	Texts        []string  `json:"texts"`
	IDs          []string  `json:"ids"`
	Similarities []float64 `json:"similarities"`
	Names        []string  `json:"names"`
	Images       []string  `json:"images"`
	Prices       []float64 `json:"prices"`
}
