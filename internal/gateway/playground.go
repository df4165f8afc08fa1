package gateway

import (
	_ "embed"
	"html/template"
	"net/http"
)

//go:embed playground.html
var playgroundHTML string

type playgroundTemplateData struct {
	EndpointURL string
}

// playgroundHandler serves the exploration UI pointed at the given GraphQL
// endpoint path.
func playgroundHandler(endpointURL string) (http.HandlerFunc, error) {
	tmpl, err := template.New("playground").Parse(playgroundHTML)
	if err != nil {
		return nil, err
	}
	data := playgroundTemplateData{EndpointURL: endpointURL}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(err.Error()))
		}
	}, nil
}
