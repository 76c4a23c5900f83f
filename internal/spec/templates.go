package spec

import "text/template"

var templateFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// Rendered artifact content carries no timestamps or session identifiers so
// identical inputs always produce identical documents.

var requirementsTemplate = template.Must(template.New("requirements").Funcs(templateFuncs).Parse(
	`# Requirements: {{.Objective}}

## Functional

{{range $i, $s := .Steps}}- R-{{inc $i}}: The workflow shall {{$s.Operation}}.{{if $s.Parallel}} This step may run concurrently with its peers.{{end}}
{{end}}
## Efficiency

{{if .Optimizations}}{{range .Optimizations}}- The implementation shall {{.Description}}.
{{end}}{{else}}- No optimization requirements apply.
{{end}}
## Outcome

- The delivered workflow targets an efficiency gain of {{printf "%.1f" .TargetGain}}%.
`))

var designTemplate = template.Must(template.New("design").Funcs(templateFuncs).Parse(
	`# Design: {{.Objective}}

## Approach

{{.Summary}}

## Workflow

{{range .Steps}}- {{.ID}}: {{.Name}}{{if .Parallel}} (parallel){{end}}
{{end}}
## Optimizations

{{if .Optimizations}}{{range .Optimizations}}- {{.Kind}}: {{.Description}} ({{printf "%.1f" .SavingsPercent}}% projected)
{{end}}{{else}}- None applied.
{{end}}
## Forecast

| Scenario | Monthly cost | Savings | Effort | Risk |
|---|---|---|---|---|
{{range .Scenarios}}| {{.Name}} | {{printf "%.2f" .Forecast.MonthlyCost}} | {{printf "%.1f" .SavingsPercent}}% | {{.Effort}} | {{.Risk}} |
{{end}}
## Recommendations

{{range .Recommendations}}{{.Rank}}. {{.Action}} ({{.Impact}} impact)
{{end}}`))
