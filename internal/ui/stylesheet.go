package ui

// stylesheet is inlined into the page head; the dashboard is a single
// view and does not warrant an asset pipeline.
const stylesheet = `
:root { color-scheme: light dark; font-family: system-ui, sans-serif; }
body { margin: 0; background: Canvas; color: CanvasText; }
.shell { max-width: 960px; margin: 0 auto; padding: 1.5rem; }
.topbar { display: flex; align-items: baseline; gap: 0.75rem; margin-bottom: 1.5rem; }
.muted { color: GrayText; font-size: 0.875rem; }
.grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(10rem, 1fr)); gap: 1rem; margin-bottom: 1.5rem; }
.card { border: 1px solid color-mix(in srgb, CanvasText 20%, Canvas); border-radius: 8px; padding: 1rem; }
.stat { display: flex; flex-direction: column; }
.stat-value { font-size: 2rem; font-weight: 600; }
.filter { width: 100%; box-sizing: border-box; margin: 0.5rem 0 1rem; padding: 0.5rem; border: 1px solid color-mix(in srgb, CanvasText 25%, Canvas); border-radius: 6px; background: inherit; color: inherit; }
table { width: 100%; border-collapse: collapse; font-size: 0.875rem; }
th { text-align: left; border-bottom: 2px solid color-mix(in srgb, CanvasText 25%, Canvas); padding: 0.4rem 0.5rem; }
td { border-bottom: 1px solid color-mix(in srgb, CanvasText 12%, Canvas); padding: 0.4rem 0.5rem; }
code { font-size: 0.8rem; }
h2 { font-size: 1rem; margin: 0 0 0.25rem; }
`
