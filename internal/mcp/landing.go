package mcp

import "net/http"

const landingHTML = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>RAG QA Server</title>
<style>
  body { font-family: -apple-system, "PingFang SC", "Microsoft YaHei", sans-serif; background: #f8fafc; color: #1e293b; margin: 0; padding: 3rem 1rem; }
  main { max-width: 640px; margin: 0 auto; }
  h1 { font-size: 1.6rem; margin-bottom: 0.25rem; }
  p.lead { color: #475569; margin-top: 0; }
  h2 { font-size: 0.8rem; text-transform: uppercase; letter-spacing: 0.08em; color: #64748b; margin-top: 2rem; }
  table { border-collapse: collapse; width: 100%; }
  td { padding: 0.4rem 0.5rem; border-bottom: 1px solid #e2e8f0; vertical-align: top; }
  code { font-family: Menlo, Consolas, monospace; color: #4338ca; }
</style>
</head>
<body>
<main>
  <h1>RAG QA Server</h1>
  <p class="lead">Retrieval-augmented question answering over a Chinese news corpus, exposed through the Model Context Protocol.</p>

  <h2>Endpoints</h2>
  <table>
    <tr><td><code>/mcp</code></td><td>MCP Streamable HTTP</td></tr>
    <tr><td><a href="/health"><code>/health</code></a></td><td>Index health check</td></tr>
  </table>

  <h2>Tools</h2>
  <table>
    <tr><td><code>search</code></td><td>Top-k chunks for a query</td></tr>
    <tr><td><code>ask</code></td><td>Answer with sources and timings</td></tr>
    <tr><td><code>get_stats</code></td><td>Index size and backend</td></tr>
    <tr><td><code>load_data</code></td><td>Load and index a source</td></tr>
  </table>
</main>
</body>
</html>`

// NewLandingHandler serves the landing page at /.
func NewLandingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(landingHTML))
	}
}
