package api

import "encoding/json"

// FontsResponse is the body of both crawl endpoints and of the crawl CLI:
// {"ok":true,"fontFamilies":[...]} or {"ok":false,"reason":"..."}.
type FontsResponse struct {
	OK           bool
	FontFamilies []string
	Reason       string
}

// FontsResult builds a successful response. A nil slice is reported as [].
func FontsResult(fonts []string) FontsResponse {
	if fonts == nil {
		fonts = []string{}
	}
	return FontsResponse{OK: true, FontFamilies: fonts}
}

// FontsFailure builds a failed response carrying err's message.
func FontsFailure(err error) FontsResponse {
	return FontsResponse{Reason: err.Error()}
}

// MarshalJSON emits only the fields belonging to the outcome.
func (r FontsResponse) MarshalJSON() ([]byte, error) {
	if !r.OK {
		return json.Marshal(struct {
			OK     bool   `json:"ok"`
			Reason string `json:"reason"`
		}{Reason: r.Reason})
	}
	fonts := r.FontFamilies
	if fonts == nil {
		fonts = []string{}
	}
	return json.Marshal(struct {
		OK           bool     `json:"ok"`
		FontFamilies []string `json:"fontFamilies"`
	}{OK: true, FontFamilies: fonts})
}
