package sandbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstrumentComputeMode(t *testing.T) {
	code := `print(df.describe())`
	out := Instrument(code, ModeCompute)

	assert.True(t, strings.HasPrefix(out, instrumentHeader), "header must come before user code")
	assert.Contains(t, out, code)
	assert.NotContains(t, out, "plt.get_fignums", "compute mode must not carry the auto-save footer")
}

func TestInstrumentPlotMode(t *testing.T) {
	code := `plt.plot([1, 2, 3])`
	out := Instrument(code, ModePlot)

	assert.True(t, strings.HasPrefix(out, instrumentHeader))
	assert.Contains(t, out, code)
	assert.Contains(t, out, "plt.get_fignums")

	// The footer must follow user code so it sees the figures that code opened.
	assert.Less(t, strings.Index(out, code), strings.Index(out, "plt.get_fignums"))
}

func TestInstrumentHeaderRedirectsWritableDirs(t *testing.T) {
	out := Instrument("pass", ModeCompute)

	// Everything matplotlib may write must be redirected under the scratch
	// mount before the matplotlib import, and the headless backend must be
	// forced before any pyplot import.
	assert.Contains(t, out, "os.environ['MPLCONFIGDIR'] = '/out/mplconfig'")
	assert.Contains(t, out, "os.environ['XDG_CACHE_HOME'] = '/out/.cache'")
	assert.Contains(t, out, "os.environ['HOME'] = '/out'")
	assert.Less(t, strings.Index(out, "matplotlib.use('Agg')"), strings.Index(out, "import matplotlib.pyplot"))
}

func TestInstrumentIsDeterministic(t *testing.T) {
	a := Instrument("x = 1", ModePlot)
	b := Instrument("x = 1", ModePlot)
	assert.Equal(t, a, b)
}
