package detect

import "regexp"

type pattern struct {
	name string
	re   *regexp.Regexp
}

// errorPatterns is scanned in order; each match becomes a candidate
// message unless an earlier match in the same call had the same fingerprint.
var errorPatterns = []pattern{
	// JavaScript / TypeScript
	{"TypeError", regexp.MustCompile(`TypeError:\s*.+`)},
	{"SyntaxError", regexp.MustCompile(`SyntaxError:\s*.+`)},
	{"ReferenceError", regexp.MustCompile(`ReferenceError:\s*.+`)},
	{"RangeError", regexp.MustCompile(`RangeError:\s*.+`)},
	{"TypeScript Error", regexp.MustCompile(`error\s+TS\d+:\s*.+`)},

	// Node.js
	{"Node Error", regexp.MustCompile(`Error:\s*.+`)},
	{"Module Not Found", regexp.MustCompile(`Cannot find module\s+['"].+['"]`)},
	{"ENOENT", regexp.MustCompile(`ENOENT:\s*.+`)},
	{"EACCES", regexp.MustCompile(`EACCES:\s*.+`)},

	// Python
	{"Python Exception", regexp.MustCompile(`(?:Traceback \(most recent call last\):[\s\S]*?)?(?:[A-Z][a-z]*Error|Exception):\s*.+`)},
	{"Python ImportError", regexp.MustCompile(`(?:ImportError|ModuleNotFoundError):\s*.+`)},

	{"Rust Error", regexp.MustCompile(`error\[E\d+\]:\s*.+`)},
	{"Go Panic", regexp.MustCompile(`panic:\s*.+`)},
	{"Java Exception", regexp.MustCompile(`(?:Exception|Error):\s*.+(?:\n\s+at\s+.+)*`)},

	// Build tools
	{"npm Error", regexp.MustCompile(`npm ERR!\s*.+`)},
	{"Webpack Error", regexp.MustCompile(`Module build failed:\s*.+`)},
	{"ESLint Error", regexp.MustCompile(`✖\s+\d+\s+problems?\s+\(\d+\s+errors?,\s+\d+\s+warnings?\)`)},

	// Generic
	{"Failed", regexp.MustCompile(`(?:FAIL|FAILED|failed):\s*.+`)},
	{"Exit Code", regexp.MustCompile(`(?i)(?:exit|exited with|returned)\s+(?:code\s+)?[1-9]\d*`)},
}

var languagePatterns = []pattern{
	{"typescript", regexp.MustCompile(`(?i)\bTS\d+\b|\.tsx?:|tsconfig`)},
	{"javascript", regexp.MustCompile(`(?i)\.jsx?:|node_modules|package\.json`)},
	{"python", regexp.MustCompile(`(?i)\.py:|Traceback|ImportError|ModuleNotFoundError`)},
	{"rust", regexp.MustCompile(`(?i)error\[E\d+\]|Cargo\.toml|\.rs:`)},
	{"go", regexp.MustCompile(`(?i)\.go:|panic:|go\.mod`)},
	{"java", regexp.MustCompile(`(?i)\.java:|at\s+[\w.]+\([\w.]+\.java:\d+\)`)},
}

var frameworkPatterns = []pattern{
	{"react", regexp.MustCompile(`(?i)react|jsx|useState|useEffect`)},
	{"nextjs", regexp.MustCompile(`(?i)next\.config|next/|getServerSideProps|getStaticProps`)},
	{"express", regexp.MustCompile(`(?i)express|app\.get|app\.post|router\.`)},
	{"nestjs", regexp.MustCompile(`(?i)@nestjs|@Injectable|@Controller`)},
	{"django", regexp.MustCompile(`(?i)django|models\.py|views\.py`)},
	{"flask", regexp.MustCompile(`(?i)flask|@app\.route`)},
	{"vue", regexp.MustCompile(`(?i)vue|\.vue:|v-if|v-for`)},
	{"angular", regexp.MustCompile(`(?i)angular|@Component|@NgModule`)},
}

var (
	criticalPattern = regexp.MustCompile(`(?i)security|vulnerability|crash|corruption|data\s*loss`)
	highPattern     = regexp.MustCompile(`(?i)build\s*fail|cannot\s*find\s*module|type\s*error|syntax\s*error`)
	mediumPattern   = regexp.MustCompile(`(?i)warning|deprecated|eslint`)
)

func firstMatch(patterns []pattern, text string) string {
	for _, p := range patterns {
		if p.re.MatchString(text) {
			return p.name
		}
	}
	return ""
}
