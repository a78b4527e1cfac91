package notifications

var commonTemplates = map[string]string{
	`default`: `
{{- with .Change -}}
  {{$.Repo}}: {{.Branch}} {{.Kind}} at {{.Current.ID.ShortID}}
  {{- with .Current.Message | Subject}} ({{.}}){{end}}
  {{- range $.Paths | Limit 20}}
- {{.}}
  {{- end -}}
  {{- with Remaining 20 $.Paths}}
... and {{.}} more
  {{- end -}}
{{- else -}}
  {{range .Entries -}}{{.Message}}{{"\n"}}{{- end -}}
{{- end -}}`,

	`porcelain.v1.summary-no-log`: `
{{- with .Change -}}
  {{.Branch}} {{.Kind}} {{with .Prior}}{{.ShortID}}{{else}}-{{end}} {{.Current.ID.ShortID}} {{len $.Paths}}
{{- end -}}`,

	`json.v1`: `{{ . | ToJSON }}`,
}
