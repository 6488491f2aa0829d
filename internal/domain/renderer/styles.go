package renderer

// Theme tokens are CSS custom properties; only the :root block varies
// between light and dark.

const lightTokens = `:root {
  --bg: #f7f7f9;
  --surface: #ffffff;
  --text: #1c1c28;
  --muted: #6b6b7b;
  --accent: #4a6cf7;
  --accent-text: #ffffff;
  --border: #e2e2ea;
}`

const darkTokens = `:root {
  --bg: #12121a;
  --surface: #1c1c28;
  --text: #f0f0f5;
  --muted: #9a9aad;
  --accent: #6c8cff;
  --accent-text: #0d0d14;
  --border: #2c2c3a;
}`

const baseCSS = `
* { box-sizing: border-box; }
body {
  margin: 0;
  font-family: -apple-system, "Segoe UI", Roboto, sans-serif;
  background: var(--bg);
  color: var(--text);
}
header {
  padding: 16px 24px;
  background: var(--surface);
  border-bottom: 1px solid var(--border);
}
header h1 { margin: 0 0 8px; font-size: 20px; }
.nav a {
  margin-right: 16px;
  color: var(--muted);
  text-decoration: none;
}
.nav a.active { color: var(--accent); font-weight: 600; }
#app { max-width: 860px; margin: 0 auto; padding: 24px; }
.text { line-height: 1.6; }
.image { max-width: 100%; border-radius: 8px; }
.link { color: var(--accent); }
.button {
  padding: 8px 16px;
  border: none;
  border-radius: 6px;
  background: var(--accent);
  color: var(--accent-text);
  cursor: pointer;
}
.list { padding-left: 20px; }
.list li { margin: 4px 0; }
.table { width: 100%; border-collapse: collapse; background: var(--surface); }
.table th, .table td {
  padding: 8px 12px;
  border-bottom: 1px solid var(--border);
  text-align: left;
}
.grid {
  display: grid;
  grid-template-columns: repeat(auto-fill, minmax(180px, 1fr));
  gap: 12px;
}
.grid .cell {
  padding: 16px;
  background: var(--surface);
  border: 1px solid var(--border);
  border-radius: 8px;
}
.form, .composer {
  display: flex;
  flex-direction: column;
  gap: 12px;
  padding: 16px;
  background: var(--surface);
  border: 1px solid var(--border);
  border-radius: 8px;
  margin: 12px 0;
}
.field { display: flex; flex-direction: column; gap: 4px; }
.field label { font-size: 13px; color: var(--muted); }
.field input, .field textarea, .composer input {
  padding: 8px;
  border: 1px solid var(--border);
  border-radius: 6px;
  background: var(--bg);
  color: var(--text);
}
.card {
  padding: 12px 16px;
  margin: 8px 0;
  background: var(--surface);
  border: 1px solid var(--border);
  border-radius: 8px;
}
.card .title { font-weight: 600; }
.card .body { color: var(--muted); margin-top: 4px; }
.profile .row { display: flex; gap: 12px; padding: 4px 0; }
.profile .key { color: var(--muted); min-width: 100px; }
.placeholder {
  padding: 12px;
  border: 1px dashed var(--border);
  border-radius: 8px;
  color: var(--muted);
  font-family: monospace;
}
.empty { color: var(--muted); font-style: italic; }
`

// stylesheet returns the full CSS for the given theme.
func stylesheet(dark bool) string {
	if dark {
		return darkTokens + "\n" + baseCSS
	}
	return lightTokens + "\n" + baseCSS
}
