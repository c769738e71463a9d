package main

// loaderPage shows server output while the launcher waits for /health.
const loaderPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>AuthFlow</title>
<style>
  :root { --fg: #7fffd4; --dim: #1d3b47; }
  html, body { height: 100%; margin: 0; }
  body { display: grid; grid-template-rows: auto 1fr; background: #05121a; color: var(--fg); font: 12px Consolas, monospace; }
  header { padding: 16px; border-bottom: 1px solid var(--dim); letter-spacing: .3em; font-size: 14px; }
  header::after { content: "_"; animation: blink 1s steps(1) infinite; }
  @keyframes blink { 50% { opacity: 0; } }
  main { overflow-y: auto; padding: 12px 16px; white-space: pre-wrap; }
  main p { margin: 0; opacity: .8; }
</style>
</head>
<body>
<header>AUTHFLOW // STARTING</header>
<main id="log"></main>
<script>
  const MAX_LINES = 500;
  window.addLogLine = text => {
    const log = document.getElementById('log');
    const p = document.createElement('p');
    p.textContent = text;
    log.append(p);
    while (log.childElementCount > MAX_LINES) log.firstElementChild.remove();
    log.scrollTop = log.scrollHeight;
  };
</script>
</body>
</html>
`
