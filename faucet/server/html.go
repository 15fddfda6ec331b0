package server

import (
	"html/template"
	"net/http"
)

// indexTemplate is the faucet landing page. The JavaScript client solves
// the proof of work challenge in the browser; template values inject the
// network endpoint and provider keys it needs.
var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Token Faucet</title>
</head>
<body>
  <h1>Token Faucet</h1>
  <p>Dispenses {{.Amount}} tokens of the base asset per request.</p>
  <form id="faucet-form">
    <input type="text" id="address" placeholder="Address (hex or bech32)" size="70">
    {{if .CaptchaKey}}<div class="g-recaptcha" data-sitekey="{{.CaptchaKey}}"></div>{{end}}
    <button type="submit">Give me tokens</button>
  </form>
  <div id="status"></div>
  <script>
    window.faucetConfig = {
      nodeURL: {{.NodeURL}},
      difficulty: {{.Difficulty}},
      captchaKey: {{.CaptchaKey}},
      clerkPubKey: {{.ClerkPubKey}}
    };
  </script>
</body>
</html>
`))

type indexData struct {
	Amount      uint64
	NodeURL     string
	Difficulty  uint8
	CaptchaKey  string
	ClerkPubKey string
}

// handleIndex renders the landing page.
func (s *Service) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	err := indexTemplate.Execute(w, indexData{
		Amount:      s.dispenser.Amount(),
		NodeURL:     s.cfg.PublicNodeURL,
		Difficulty:  s.pow.Difficulty(),
		CaptchaKey:  s.cfg.CaptchaKey,
		ClerkPubKey: s.cfg.ClerkPubKey,
	})
	if err != nil {
		log.WithError(err).Error("Could not render index page")
	}
}
