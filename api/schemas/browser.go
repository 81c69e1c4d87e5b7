package schemas

// -- Browser Capture Schemas --

// ImageData is a single screenshot attachment for a model request. Data holds
// raw PNG bytes; ScrollY tags the vertical scroll offset at capture time so
// multi-shot captures of long pages stay ordered.
type ImageData struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
	ScrollY  int64  `json:"scroll_y"`
}

// ScrollMetrics describes the vertical geometry of the current page.
type ScrollMetrics struct {
	ScrollY        int64 `json:"scroll_y"`        // window.pageYOffset
	ViewportHeight int64 `json:"viewport_height"` // window.innerHeight
	ContentHeight  int64 `json:"content_height"`  // document.body.scrollHeight
}

// AtBottom reports whether the viewport has reached the effective end of the
// page. The content height can grow as lazy content loads, so this is an
// approximation with a small pixel tolerance.
func (m *ScrollMetrics) AtBottom() bool {
	return m.ScrollY+m.ViewportHeight+10 >= m.ContentHeight
}
