package api

// dashboardHTML is the single-page dashboard served at /. It drives the scan
// endpoints with fetch(), disables the controls while a scan is in flight,
// and renders each section independently so one failing tool never blanks
// the others.
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>GraphAudit - GraphQL Security Dashboard</title>
    <script src="https://cdn.jsdelivr.net/npm/cytoscape@3.28.1/dist/cytoscape.min.js"></script>
    <script src="https://cdn.jsdelivr.net/npm/react@18/umd/react.production.min.js"></script>
    <script src="https://cdn.jsdelivr.net/npm/react-dom@18/umd/react-dom.production.min.js"></script>
    <script src="https://cdn.jsdelivr.net/npm/graphql-voyager@2.0.0/dist/voyager.standalone.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/graphql-voyager@2.0.0/dist/voyager.css">
    <style>
        :root {
            --bg-primary: #09090B;
            --bg-card: #131314;
            --bg-hover: #1f1f21;
            --border-color: rgba(212, 162, 127, 0.15);
            --text-primary: #FAFAF5;
            --text-secondary: #9ca3af;
            --text-muted: #6b7280;
            --accent-primary: #D4A27F;
            --accent-secondary: #EBDBBC;
            --high: #ef4444;
            --medium: #f59e0b;
            --low: #3b82f6;
            --info: #6b7280;
        }

        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.6;
        }

        .container { max-width: 1400px; margin: 0 auto; padding: 20px; }

        h1 { font-size: 2.2rem; color: var(--accent-primary); font-weight: 400; }
        h2 { font-size: 1.3rem; margin: 30px 0 15px; color: var(--accent-secondary); font-weight: 400; }
        .subtitle { color: var(--text-muted); margin-bottom: 30px; }

        .panel {
            background: var(--bg-card);
            border: 1px solid var(--border-color);
            border-radius: 12px;
            padding: 20px;
            margin-bottom: 20px;
        }

        label { display: block; color: var(--text-secondary); font-size: 0.85rem; margin-bottom: 4px; }

        input[type=text], textarea {
            width: 100%;
            background: var(--bg-primary);
            border: 1px solid var(--border-color);
            border-radius: 8px;
            color: var(--text-primary);
            padding: 10px;
            font-family: ui-monospace, SFMono-Regular, Menlo, monospace;
            font-size: 0.9rem;
            margin-bottom: 14px;
        }

        button {
            background: var(--accent-primary);
            color: var(--bg-primary);
            border: none;
            border-radius: 8px;
            padding: 10px 18px;
            margin-right: 8px;
            font-size: 0.9rem;
            cursor: pointer;
        }

        button.secondary { background: var(--bg-hover); color: var(--text-primary); border: 1px solid var(--border-color); }
        button:disabled { opacity: 0.4; cursor: not-allowed; }

        .error { color: var(--high); white-space: pre-wrap; }
        .summary { color: var(--text-secondary); margin-bottom: 12px; }

        .finding { border-left: 3px solid var(--info); padding: 10px 14px; margin-bottom: 10px; background: var(--bg-primary); border-radius: 0 8px 8px 0; }
        .finding.positive.HIGH { border-left-color: var(--high); }
        .finding.positive.MEDIUM { border-left-color: var(--medium); }
        .finding.positive.LOW { border-left-color: var(--low); }
        .finding .title { font-weight: 600; }
        .finding .meta { color: var(--text-muted); font-size: 0.85rem; }

        .cards { display: grid; grid-template-columns: repeat(auto-fill, minmax(240px, 1fr)); gap: 12px; }
        .card { background: var(--bg-primary); border: 1px solid var(--border-color); border-radius: 8px; padding: 12px; }
        .card .name { color: var(--accent-secondary); font-weight: 600; }
        .card .fields { color: var(--text-muted); font-size: 0.85rem; word-break: break-word; }

        pre {
            background: var(--bg-primary);
            border: 1px solid var(--border-color);
            border-radius: 8px;
            padding: 14px;
            overflow: auto;
            max-height: 420px;
            font-size: 0.82rem;
            white-space: pre-wrap;
        }

        #graph { height: 460px; background: var(--bg-primary); border: 1px solid var(--border-color); border-radius: 8px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>GraphAudit</h1>
        <p class="subtitle">GraphQL endpoint security testing dashboard</p>

        <div class="panel">
            <label for="target">Target GraphQL endpoint</label>
            <input type="text" id="target" placeholder="https://api.example.com/graphql">

            <label for="headers">Extra headers (JSON object, optional)</label>
            <textarea id="headers" rows="3" placeholder='{"Authorization": "Bearer ..."}'></textarea>

            <button id="btn-all" onclick="runAll()">Run All Scans</button>
            <button class="secondary" id="btn-cop" onclick="runCop()">Security Audit</button>
            <button class="secondary" id="btn-w00f" onclick="runW00f()">Fingerprint Engine</button>
            <button class="secondary" id="btn-intro" onclick="runIntrospection()">Introspection</button>
            <button class="secondary" id="btn-analyze" onclick="runAnalyze()">Full Analysis</button>
        </div>

        <div class="panel">
            <h2 style="margin-top:0">Query Console</h2>
            <label for="query">GraphQL query</label>
            <textarea id="query" rows="4" placeholder="query { __typename }"></textarea>
            <label for="variables">Variables (JSON object, optional)</label>
            <textarea id="variables" rows="2"></textarea>
            <button class="secondary" id="btn-query" onclick="runQuery()">Run Query</button>
            <pre id="query-result" hidden></pre>
        </div>

        <h2>Security Findings</h2>
        <div class="panel" id="findings-panel"><span class="summary">No audit run yet.</span></div>

        <h2>Engine Fingerprint</h2>
        <div class="panel" id="engine-panel"><span class="summary">No fingerprint run yet.</span></div>

        <h2>Schema Objects</h2>
        <div class="panel" id="schema-panel"><span class="summary">No introspection run yet.</span></div>

        <h2>Schema Graph</h2>
        <div class="panel"><div id="graph"></div></div>

        <h2>Schema Explorer</h2>
        <div class="panel"><div id="voyager"><span class="summary">Run introspection to explore the schema.</span></div></div>

        <h2>Raw Introspection</h2>
        <div class="panel"><pre id="introspection-raw">No data.</pre></div>
    </div>

    <script>
        const buttons = ['btn-all', 'btn-cop', 'btn-w00f', 'btn-intro', 'btn-analyze', 'btn-query'];

        function setBusy(busy) {
            buttons.forEach(id => document.getElementById(id).disabled = busy);
        }

        function scanBody() {
            return {
                target: document.getElementById('target').value.trim(),
                headers: document.getElementById('headers').value.trim()
            };
        }

        function requireTarget() {
            if (!scanBody().target) {
                renderError('findings-panel', 'target is required');
                return false;
            }
            return true;
        }

        async function post(path, body) {
            const resp = await fetch(path, {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify(body)
            });
            let data;
            try {
                data = await resp.json();
            } catch (e) {
                throw new Error('endpoint did not return valid JSON');
            }
            if (!resp.ok) {
                throw new Error(data.error || JSON.stringify(data));
            }
            return data;
        }

        function pretty(obj) { return JSON.stringify(obj, null, 2); }

        function renderError(panelId, message) {
            document.getElementById(panelId).innerHTML =
                '<span class="error"></span>';
            document.getElementById(panelId).querySelector('.error').textContent = message;
        }

        function renderFindings(findings) {
            const positive = findings.filter(f => f.result).length;
            let html = '<div class="summary">' + positive + ' positive out of ' + findings.length + ' checks</div>';
            for (const f of findings) {
                const cls = 'finding ' + (f.result ? 'positive ' : '') + f.severity;
                html += '<div class="' + cls + '">' +
                    '<div class="title">' + esc(f.title) + ' [' + esc(f.severity) + ']</div>' +
                    '<div>' + esc(f.description) + '</div>' +
                    '<div class="meta">Impact: ' + esc(f.impact) + '</div>' +
                    '</div>';
            }
            html += '<pre>' + esc(pretty(findings)) + '</pre>';
            document.getElementById('findings-panel').innerHTML = html;
        }

        function renderEngine(engine) {
            let html = '<div class="summary">' + esc(engine.engine) +
                ' (confidence ' + engine.confidence + ')</div><ul>';
            for (const note of engine.security_notes || []) {
                html += '<li>' + esc(note) + '</li>';
            }
            html += '</ul>';
            document.getElementById('engine-panel').innerHTML = html;
        }

        function renderSchema(schemaData) {
            const objects = schemaData.objects || [];
            let html = '<div class="summary">Loaded ' + objects.length + ' object types</div><div class="cards">';
            for (const obj of objects) {
                html += '<div class="card"><div class="name">' + esc(obj.name) + '</div>' +
                    '<div class="fields">' + esc((obj.fields || []).join(', ')) + '</div></div>';
            }
            html += '</div>';
            document.getElementById('schema-panel').innerHTML = html;
            renderGraph(schemaData.graph || { nodes: [], edges: [] });
        }

        function renderGraph(graph) {
            cytoscape({
                container: document.getElementById('graph'),
                elements: [...(graph.nodes || []), ...(graph.edges || [])],
                style: [
                    { selector: 'node', style: { label: 'data(label)', color: '#FAFAF5',
                        'background-color': '#D4A27F', 'font-size': '10px' } },
                    { selector: 'edge', style: { label: 'data(label)', color: '#6b7280',
                        'line-color': '#374151', 'font-size': '8px',
                        'curve-style': 'bezier', 'target-arrow-shape': 'triangle',
                        'target-arrow-color': '#374151' } }
                ],
                layout: { name: 'cose', animate: false }
            });
        }

        function renderVoyager(doc) {
            if (!window.GraphQLVoyager || !doc || !doc.__schema) return;
            const el = document.getElementById('voyager');
            el.innerHTML = '';
            el.style.height = '600px';
            GraphQLVoyager.init(el, { introspection: { data: doc } });
        }

        function esc(s) {
            return String(s ?? '').replace(/[&<>"']/g,
                ch => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[ch]));
        }

        async function runCop() {
            if (!requireTarget()) return;
            setBusy(true);
            try {
                const data = await post('/api/graphql-cop', scanBody());
                renderFindings(data.findings || []);
            } catch (e) {
                renderError('findings-panel', e.message);
            } finally {
                setBusy(false);
            }
        }

        async function runW00f() {
            if (!requireTarget()) return;
            setBusy(true);
            try {
                const data = await post('/api/graphw00f', scanBody());
                renderEngine(data.engine || {});
            } catch (e) {
                renderError('engine-panel', e.message);
            } finally {
                setBusy(false);
            }
        }

        async function runIntrospection() {
            if (!requireTarget()) return;
            setBusy(true);
            try {
                const data = await post('/api/introspection', scanBody());
                document.getElementById('introspection-raw').textContent = pretty(data.introspection);
                renderSchemaFromIntrospection(data.introspection);
            } catch (e) {
                renderError('schema-panel', e.message);
            } finally {
                setBusy(false);
            }
        }

        function renderSchemaFromIntrospection(doc) {
            const types = ((doc || {}).__schema || {}).types || [];
            const objects = types
                .filter(t => t.kind === 'OBJECT' && !String(t.name || '').startsWith('__'))
                .sort((a, b) => String(a.name).localeCompare(String(b.name)))
                .map(t => ({ name: t.name, fields: (t.fields || []).map(f => f.name) }));
            renderSchema({ objects: objects, graph: { nodes: [], edges: [] } });
            renderVoyager(doc);
        }

        async function runAll() {
            if (!requireTarget()) return;
            setBusy(true);
            const body = scanBody();

            // Sequential on purpose: each section renders or fails on its own.
            try {
                const data = await post('/api/graphql-cop', body);
                renderFindings(data.findings || []);
            } catch (e) {
                renderError('findings-panel', e.message);
            }

            try {
                const data = await post('/api/graphw00f', body);
                renderEngine(data.engine || {});
            } catch (e) {
                renderError('engine-panel', e.message);
            }

            try {
                const data = await post('/api/introspection', body);
                document.getElementById('introspection-raw').textContent = pretty(data.introspection);
                renderSchemaFromIntrospection(data.introspection);
            } catch (e) {
                renderError('schema-panel', e.message);
            }

            setBusy(false);
        }

        async function runAnalyze() {
            if (!requireTarget()) return;
            setBusy(true);
            try {
                const data = await post('/api/analyze', scanBody());
                renderFindings(data.audit || []);
                renderEngine(data.engine || {});
                renderSchema(data.schema || {});
                renderVoyager(data.introspection);
                document.getElementById('introspection-raw').textContent = pretty(data.introspection);
            } catch (e) {
                renderError('findings-panel', e.message);
            } finally {
                setBusy(false);
            }
        }

        async function runQuery() {
            const body = scanBody();
            body.query = document.getElementById('query').value.trim();
            body.variables = document.getElementById('variables').value.trim();
            const out = document.getElementById('query-result');
            out.hidden = false;

            if (!body.target || !body.query) {
                out.textContent = 'target and query are required';
                return;
            }

            setBusy(true);
            try {
                const data = await post('/api/query', body);
                out.textContent = pretty(data.result);
            } catch (e) {
                out.textContent = e.message;
            } finally {
                setBusy(false);
            }
        }
    </script>
</body>
</html>
`
