package templates

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
)

const (
	datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"
	chartScript    = "https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"
)

type Viewer struct {
	Name  string
	Email string
	Role  string
}

type Frame struct {
	Title  string
	Viewer *Viewer
}

type Chart struct {
	ID    string
	Title string
	Wide  bool
}

// Panel is a server-rendered block the page feed patches by ID.
type Panel struct {
	ID    string
	Title string
}

type PageInfo struct {
	Key     string
	Prefix  string
	Title   string
	Summary string
	Charts  []Chart
	Panels  []Panel
}

func (p PageInfo) Feed() string {
	return p.Prefix + "sse"
}

// Signal is the datastar signal the feed patches the page view into. The
// leading underscore keeps it out of the signals sent back to the server.
func (p PageInfo) Signal() string {
	return "_" + p.Key
}

type FilterChoices struct {
	Categories []string
	Cities     []string
	Years      []int
}

type HomeView struct {
	Frame
	Pages []PageInfo
}

type FormView struct {
	Frame
	Action  string
	Next    string
	Message string
	Values  map[string]string
	Errors  map[string]string
	Roles   []string
}

type PageView struct {
	Frame
	Page   PageInfo
	Filter *FilterChoices
}

func (v PageView) Signals() string {
	var b strings.Builder
	fmt.Fprintf(&b, "{%s: {}", v.Page.Signal())
	if v.Filter != nil {
		b.WriteString(", filter: {category: '', city: '', year: '', month: '', min_discount: '', max_discount: ''}")
	}
	b.WriteString("}")
	return b.String()
}

func (v PageView) Init() string {
	return fmt.Sprintf("@get('%s')", v.Page.Feed())
}

func (v PageView) Effect() string {
	return fmt.Sprintf("supermart.render('%s', $%s)", v.Page.Key, v.Page.Signal())
}

var funcs = template.FuncMap{
	"money":   Money,
	"count":   Count,
	"percent": Percent,
	"decimal": Decimal,
	"month": func(m int) string {
		return time.Month(m).String()
	},
	"months": func() []int {
		return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	},
}

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} | Supermart</title>
<script type="module" src="` + datastarScript + `"></script>
<script src="` + chartScript + `"></script>
<script src="/static/charts.js"></script>
<link rel="stylesheet" href="/static/app.css">
</head>
<body>
<nav class="topbar">
<a class="brand" href="/">Supermart Analytics</a>
{{if .Viewer}}<span class="viewer">{{.Viewer.Name}} ({{.Viewer.Role}})</span><a href="/logout">Logout</a>{{end}}
</nav>
<main>
{{template "content" .}}
</main>
</body>
</html>{{end}}`

const homeHTML = `{{define "content"}}
<h1>Welcome, {{.Viewer.Name}}</h1>
<div class="page-grid">
{{range .Pages}}<a class="page-card" href="{{.Prefix}}">
<h2>{{.Title}}</h2>
<p>{{.Summary}}</p>
</a>
{{end}}</div>
{{end}}`

const formHTML = `{{define "content"}}
<section class="auth-card">
<h1>{{.Title}}</h1>
{{with .Message}}<div class="banner error">{{.}}</div>{{end}}
<form method="post" action="{{.Action}}">
<input type="hidden" name="next" value="{{.Next}}">
{{if .Roles}}
<label>Name
<input type="text" name="name" value="{{index .Values "name"}}" required>
{{with index .Errors "name"}}<span class="field-error">{{.}}</span>{{end}}
</label>
{{end}}
<label>Email
<input type="email" name="email" value="{{index .Values "email"}}" required>
{{with index .Errors "email"}}<span class="field-error">{{.}}</span>{{end}}
</label>
<label>Password
<input type="password" name="password" required>
{{with index .Errors "password"}}<span class="field-error">{{.}}</span>{{end}}
</label>
{{if .Roles}}
<label>Role
<select name="role">
{{$role := index .Values "role"}}{{range .Roles}}<option value="{{.}}"{{if eq . $role}} selected{{end}}>{{.}}</option>{{end}}
</select>
{{with index .Errors "role"}}<span class="field-error">{{.}}</span>{{end}}
</label>
<button type="submit">Sign up</button>
<p>Already registered? <a href="/login">Login</a></p>
{{else}}
<button type="submit">Login</button>
<p>New here? <a href="/signup">Create an account</a></p>
{{end}}
</form>
</section>
{{end}}`

const pageHTML = `{{define "content"}}
<section class="page" data-signals="{{.Signals}}" data-init="{{.Init}}" data-effect="{{.Effect}}">
<header class="page-header">
<h1>{{.Page.Title}}</h1>
<a class="export" href="/api/export.xlsx">Download workbook</a>
</header>
<div id="status" class="status">Loading…</div>
{{with .Filter}}
<form class="filters" data-on:change="@get('/sales/sse')">
<label>Category
<select data-bind="filter.category"><option value="">All</option>{{range .Categories}}<option value="{{.}}">{{.}}</option>{{end}}</select>
</label>
<label>City
<select data-bind="filter.city"><option value="">All</option>{{range .Cities}}<option value="{{.}}">{{.}}</option>{{end}}</select>
</label>
<label>Year
<select data-bind="filter.year"><option value="">All</option>{{range .Years}}<option value="{{.}}">{{.}}</option>{{end}}</select>
</label>
<label>Month
<select data-bind="filter.month"><option value="">All</option>{{range months}}<option value="{{.}}">{{month .}}</option>{{end}}</select>
</label>
<label>Discount from
<input type="number" min="0" max="1" step="0.05" data-bind="filter.min_discount">
</label>
<label>to
<input type="number" min="0" max="1" step="0.05" data-bind="filter.max_discount">
</label>
</form>
{{end}}
<div class="chart-grid">
{{range .Page.Charts}}<figure class="chart{{if .Wide}} wide{{end}}">
<figcaption>{{.Title}}</figcaption>
<canvas id="{{.ID}}"></canvas>
</figure>
{{end}}</div>
{{range .Page.Panels}}<section class="panel">
<h2>{{.Title}}</h2>
<div id="{{.ID}}"></div>
</section>
{{end}}
</section>
{{end}}`

var (
	base     = template.Must(template.New("layout").Funcs(funcs).Parse(layoutHTML))
	homeTmpl = template.Must(template.Must(base.Clone()).Parse(homeHTML))
	formTmpl = template.Must(template.Must(base.Clone()).Parse(formHTML))
	pageTmpl = template.Must(template.Must(base.Clone()).Parse(pageHTML))
)

func component(t *template.Template, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return t.ExecuteTemplate(w, "layout", data)
	})
}

func Home(v HomeView) templ.Component {
	return component(homeTmpl, v)
}

// Login and Signup share one form; Roles switches on the signup fields.
func Login(v FormView) templ.Component {
	return component(formTmpl, v)
}

func Signup(v FormView) templ.Component {
	return component(formTmpl, v)
}

func Page(v PageView) templ.Component {
	return component(pageTmpl, v)
}
