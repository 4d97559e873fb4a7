// Filename: php/fuzz_test.go
package php

import (
	"context"
	"strings"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"go.uber.org/zap"

	"github.com/xkilldash9x/phortress/internal/analysis/static/php/sources"
)

// fragments are statement templates the structured fuzzer strings
// together. Real programs combine these shapes in arbitrary order.
var fragments = []string{
	"$a = $_GET['x'];",
	"$b = htmlspecialchars($a);",
	"$a = $b . $a;",
	"$c[$a] = $b;",
	"$o->p = $a;",
	"echo $a, $b;",
	"system($c);",
	"eval($b);",
	"function f($x, ...$r) { return g($x) . $r[0]; }",
	"function g($y) { global $a; echo $y; return f($y, $a); }",
	"$d = f($a);",
	"$d = g(...$c);",
	"if ($a) { $b = 1; } else { $b = $a; }",
	"while ($a) { $a = $a . $b; }",
	"$$a = $b;",
	"$a(...$b);",
	"namespace N;",
	"namespace { }",
	"class K { function m($z) { echo $z; } }",
	"$e = function($q) use ($a) { return $a . $q; };",
	"include $a;",
	"$f = (int) $a;",
	"$a .= `ls $b`;",
	"}",
	"{",
	"static::$s = $a;",
}

// FuzzAnalyzeFile feeds arbitrary bytes through parse, resolve and trace.
// The analysis must never panic or hang, whatever the input.
func FuzzAnalyzeFile(f *testing.F) {
	f.Add([]byte("<?php echo $_GET['q'];"))
	f.Add([]byte("<?php function f($x) { return f($x); } echo f($_GET['a']);"))
	f.Add([]byte("<?php $a = &$b; $b = $_POST['x']; echo $a;"))
	f.Add([]byte("<?php namespace A\\B; function c() {} \\A\\B\\c();"))
	f.Add([]byte("<?php ?> <b><?= $_COOKIE['c'] ?></b>"))

	fp := NewFingerprinter(zap.NewNop(), sources.Default(), Options{ReportUnknown: true})
	f.Fuzz(func(t *testing.T, data []byte) {
		report, err := fp.AnalyzeFile(context.Background(), "fuzz.php", data)
		if err != nil {
			return
		}
		for _, finding := range report.Findings {
			if finding.Location.Line <= 0 {
				t.Fatalf("finding without a line: %+v", finding)
			}
		}
	})
}

// FuzzAnalyzeFile_Structured builds syntactically plausible programs from
// fragments so the fuzzer spends its time in scoping and tracing rather
// than in the parser's error recovery.
func FuzzAnalyzeFile_Structured(f *testing.F) {
	f.Add([]byte{0, 1, 5, 8, 9, 10})
	f.Add([]byte{16, 8, 17, 18, 19, 6})

	fp := NewFingerprinter(zap.NewNop(), sources.Default(), Options{MaxCallDepth: 4, ReportUnknown: true})
	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		count, err := consumer.GetInt()
		if err != nil {
			return
		}

		var b strings.Builder
		b.WriteString("<?php\n")
		for i := 0; i < count%32; i++ {
			n, err := consumer.GetInt()
			if err != nil {
				break
			}
			idx := n % len(fragments)
			if idx < 0 {
				idx += len(fragments)
			}
			b.WriteString(fragments[idx])
			b.WriteByte('\n')
		}
		if extra, err := consumer.GetString(); err == nil {
			b.WriteString(extra)
		}

		if _, err := fp.Analyze(context.Background(), "structured.php", []byte(b.String())); err != nil {
			return
		}
	})
}
