package ui

import (
	"fmt"
	"net/http"
	"time"

	"sqlzibar/internal/domain"
	"sqlzibar/internal/service/authz"

	. "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	. "maragu.dev/gomponents/html"
)

type dashboardData struct {
	PrincipalID string
	Stats       authz.Stats
	Chains      int64
	Locations   int64
	Recent      []domain.Grant
}

func renderHTML(w http.ResponseWriter, status int, node Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}

func shell(title string, body ...Node) Node {
	return HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
			TitleEl(Text(title+" | Sqlzibar")),
			Link(Rel("icon"), Href("data:,")),
			StyleEl(Raw(stylesheet)),
			Script(
				Type("module"),
				Src("https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.7/bundles/datastar.js"),
			),
		),
		Body(
			Main(Class("shell"),
				Header(Class("topbar"),
					Strong(Text("Sqlzibar")),
					Span(Class("muted"), Text("authorization graph dashboard")),
				),
				Group(body),
			),
		),
	)
}

func dashboardPage(d dashboardData) Node {
	viewer := d.PrincipalID
	if viewer == "" {
		viewer = "anonymous"
	}
	return shell("Dashboard",
		P(Class("muted"), Text("Viewing as "+viewer)),
		Div(Class("grid"),
			statCard("Principals", d.Stats.Principals),
			statCard("Resources", d.Stats.Resources),
			statCard("Active grants", d.Stats.ActiveGrants),
			statCard("Chains", d.Chains),
			statCard("Locations", d.Locations),
		),
		recentGrantsCard(d.Recent),
	)
}

func statCard(label string, value int64) Node {
	return Div(Class("card stat"),
		Span(Class("stat-value"), Text(fmt.Sprintf("%d", value))),
		Span(Class("muted"), Text(label)),
	)
}

func recentGrantsCard(grants []domain.Grant) Node {
	if len(grants) == 0 {
		return Div(Class("card"),
			H2(Text("Recent grants")),
			P(Class("muted"), Text("No grants recorded yet.")),
		)
	}

	rows := make([]Node, 0, len(grants))
	for i := range grants {
		g := grants[i]
		rows = append(rows, Tr(
			data.Show(rowFilterExpr(g)),
			Td(Code(Text(g.PrincipalID))),
			Td(Code(Text(g.RoleID))),
			Td(Code(Text(g.ResourceID))),
			Td(Text(formatWindow(g.EffectiveFrom, g.EffectiveTo))),
			Td(Class("muted"), Text(g.CreatedAt.Format(time.RFC3339))),
		))
	}
	return Div(Class("card"),
		data.Signals(map[string]any{"q": ""}),
		H2(Text("Recent grants")),
		Input(Type("search"), Class("filter"), Placeholder("Filter by principal, role, or resource"),
			data.Bind("q"), AutoComplete("off")),
		Table(
			THead(Tr(
				Th(Text("Principal")), Th(Text("Role")), Th(Text("Resource")),
				Th(Text("Window")), Th(Text("Created")),
			)),
			TBody(Group(rows)),
		),
	)
}

// rowFilterExpr builds the client-side predicate for the quick filter:
// the row stays visible while the query is empty or matches any id.
func rowFilterExpr(g domain.Grant) string {
	haystack := fmt.Sprintf("%q", g.PrincipalID+" "+g.RoleID+" "+g.ResourceID)
	return "$q === '' || " + haystack + ".toLowerCase().includes($q.toLowerCase())"
}

func formatWindow(from, to *time.Time) string {
	switch {
	case from == nil && to == nil:
		return "always"
	case to == nil:
		return "from " + from.Format("2006-01-02")
	case from == nil:
		return "until " + to.Format("2006-01-02")
	default:
		return from.Format("2006-01-02") + " to " + to.Format("2006-01-02")
	}
}

func deniedPage() Node {
	return shell("Access denied",
		Div(Class("card"),
			H2(Text("Access denied")),
			P(Text("Your principal does not hold the DASHBOARD_VIEW capability.")),
		),
	)
}

func errorPage(title, message string) Node {
	return shell(title,
		Div(Class("card"),
			H2(Text(title)),
			P(Text(message)),
		),
	)
}
