package webmonitor

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Motion Sentry Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { margin: 0; font-family: sans-serif; background: #111; color: #eee; }
        .app { max-width: 1100px; margin: 0 auto; padding: 16px; }
        .header { display: flex; justify-content: space-between; align-items: center; }
        .title { font-size: 22px; font-weight: bold; }
        .badge { padding: 4px 10px; border-radius: 10px; background: #444; font-size: 13px; }
        .badge.motion { background: #b33; }
        .badge.pending { background: #c80; }
        .grid { display: grid; grid-template-columns: 2fr 1fr; gap: 16px; margin-top: 16px; }
        .panel { background: #1c1c1c; border-radius: 8px; padding: 12px; }
        .panel h2 { margin: 0 0 10px; font-size: 16px; }
        #stream { width: 100%; height: auto; background: #000; }
        dl { display: grid; grid-template-columns: auto 1fr; gap: 4px 12px; margin: 0; }
        dt { color: #999; }
        .alerts { list-style: none; padding: 0; margin: 0; }
        .alerts li { display: flex; gap: 8px; margin-bottom: 8px; font-size: 13px; }
        .alerts img { width: 96px; height: auto; border-radius: 4px; }
    </style>
</head>
<body>
    <div class="app">
        <div class="header">
            <div class="title">Motion Sentry Monitor</div>
            <span class="badge" id="status-badge">Waiting for data...</span>
        </div>
        <div class="grid">
            <div class="panel">
                <h2>Live Feed</h2>
                <img id="stream" src="/stream" alt="Live stream">
            </div>
            <div>
                <div class="panel">
                    <h2>Status</h2>
                    <dl>
                        <dt>Frames</dt><dd id="frames">-</dd>
                        <dt>FPS</dt><dd id="fps">-</dd>
                        <dt>Motion pixels</dt><dd id="motion-pixels">-</dd>
                        <dt>Envelope</dt><dd id="envelope">-</dd>
                        <dt>Alerts</dt><dd id="alerts-fired">-</dd>
                    </dl>
                </div>
                <div class="panel" style="margin-top:16px;">
                    <h2>Recent Alerts</h2>
                    <ul class="alerts" id="alerts"></ul>
                </div>
            </div>
        </div>
    </div>
    <script>
        const fmtRegion = (r) => r ? '(' + r.x + ',' + r.y + ' ' + r.w + 'x' + r.h + ')' : 'none';

        function renderAlerts(alerts) {
            const list = document.getElementById('alerts');
            list.innerHTML = '';
            for (const a of alerts || []) {
                const li = document.createElement('li');
                if (a.snapshot_url) {
                    const img = document.createElement('img');
                    img.src = a.snapshot_url;
                    li.appendChild(img);
                }
                const text = document.createElement('span');
                text.textContent = new Date(a.timestamp * 1000).toLocaleString() +
                    ' - ' + a.motion_area + ' px ' + fmtRegion(a.envelope);
                li.appendChild(text);
                list.appendChild(li);
            }
        }

        function renderStatus(s) {
            const badge = document.getElementById('status-badge');
            const f = s.latest_frame;
            document.getElementById('frames').textContent = s.monitor.frames_processed;
            document.getElementById('fps').textContent = s.monitor.current_fps.toFixed(1);
            document.getElementById('alerts-fired').textContent = s.monitor.alerts_fired;
            document.getElementById('motion-pixels').textContent = f ? f.motion_pixels : '-';
            document.getElementById('envelope').textContent = f ? fmtRegion(f.envelope) : '-';
            badge.className = 'badge';
            if (!f) {
                badge.textContent = 'Waiting for data...';
            } else if (s.monitor.pending) {
                badge.textContent = 'Motion (pending alert)';
                badge.classList.add('pending');
            } else if (f.motion) {
                badge.textContent = 'Motion';
                badge.classList.add('motion');
            } else {
                badge.textContent = 'Idle';
            }
            renderAlerts(s.alert_history);
        }

        new EventSource('/api/status/stream').onmessage = (e) => renderStatus(JSON.parse(e.data));
        new EventSource('/api/alerts/stream').onmessage = () => {
            fetch('/api/alerts').then((r) => r.json()).then((d) => renderAlerts(d.alerts));
        };
    </script>
</body>
</html>
`
