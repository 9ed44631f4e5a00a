package mirror

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"sensor-proxy/internal/domain"
)

// GUIURL is one entry of a .gui-urls sensor value.
type GUIURL struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Href        string `json:"href"`
	Category    string `json:"category"`
}

// GUIURLRewriter returns a RewriteFunc that points every link of a .gui-urls sensor
// at base/gui/<sensor path>/<title>/, where the sensor path is the sensor name
// without the .gui-urls suffix and with dots turned into slashes. Values that are not
// a JSON list of links are passed through unchanged.
func GUIURLRewriter(base string) (RewriteFunc, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, err
	}

	return func(raw *domain.Sensor) []byte {
		value, _ := raw.Value().([]byte)
		var links []GUIURL
		if err := json.Unmarshal(value, &links); err != nil {
			return value
		}

		sensorPath := strings.ReplaceAll(strings.TrimSuffix(raw.Name(), guiURLsSuffix), ".", "/")
		for i := range links {
			target := *baseURL
			target.Path = path.Join("/", baseURL.Path, "gui", sensorPath, slug(links[i].Title)) + "/"
			links[i].Href = target.String()
		}

		rewritten, err := json.Marshal(links)
		if err != nil {
			return value
		}
		return rewritten
	}, nil
}

func slug(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
