package sandbox

// Instrumentation wraps generated code with a safety header, and, in Plot
// mode, an auto-save footer. The header must run before any user import that
// touches the environment: matplotlib picks its backend and config directory
// at import time, and with a read-only root filesystem the only writable
// location is /out. Pure string assembly, no I/O, no failure path.

const instrumentHeader = `import os
os.makedirs('/out/mplconfig', exist_ok=True)
os.makedirs('/out/.cache', exist_ok=True)
os.environ['MPLCONFIGDIR'] = '/out/mplconfig'
os.environ['XDG_CACHE_HOME'] = '/out/.cache'
os.environ['HOME'] = '/out'
os.environ.setdefault('FONTCONFIG_PATH', '/etc/fonts')
import matplotlib
matplotlib.use('Agg')
import numpy as np
import pandas as pd
import matplotlib.pyplot as plt
`

// The footer enumerates every open figure and saves it under the artifact
// naming pattern the runner scans for. Save failures are printed into the
// combined log instead of failing the run.
const instrumentFooter = `
# Auto-save open figures to /out
try:
    figs = [plt.figure(n) for n in plt.get_fignums()]
    for i, fig in enumerate(figs, start=1):
        fig.savefig(f'/out/output_{i}.png', dpi=150, bbox_inches='tight')
except Exception as e:
    print(f"Failed to auto-save plots: {e}")
`

// Instrument returns the submitted code wrapped for sandboxed execution.
func Instrument(code string, mode Mode) string {
	if mode == ModePlot {
		return instrumentHeader + "\n" + code + "\n" + instrumentFooter
	}
	return instrumentHeader + "\n" + code + "\n"
}
