package sop

// Template is a reusable document outline from the built-in library.
type Template struct {
	Key     string
	Title   string
	Summary string
	Steps   []string
}

// Templates is the built-in template library, in display order.
var Templates = []Template{
	{
		Key:     "onboarding",
		Title:   "New Employee Onboarding",
		Summary: "Welcome, access, IT/security, buddy assignment, and first-week goals.",
		Steps: []string{
			"Send welcome email with start date and checklist",
			"Provision accounts (email, SSO, tools)",
			"IT & security setup (2FA, password manager)",
			"Assign buddy and schedule intro call",
			"Share first-week goals and resources",
		},
	},
	{
		Key:     "agency_client_onboarding",
		Title:   "Client Onboarding (Agency)",
		Summary: "Kickoff, asset collection, tracking, approvals, weekly cadence.",
		Steps: []string{
			"Schedule kickoff and confirm stakeholders",
			"Collect brand assets and credentials",
			"Implement analytics & conversion tracking",
			"Define deliverables and approval workflow",
			"Set standing weekly cadence and reporting",
		},
	},
	{
		Key:     "minor_outage",
		Title:   "Minor Website Outage",
		Summary: "Triage, communicate, rollback if needed, verify, and log.",
		Steps: []string{
			"Acknowledge incident and create ticket",
			"Triage scope and impact (pages, users, regions)",
			"Roll back recent changes if correlated",
			"Verify recovery and monitor metrics",
			"Post-incident notes and follow-ups",
		},
	},
	{
		Key:     "google_ads_weekly",
		Title:   "Google Ads Weekly Routine",
		Summary: "Search terms, negatives, budgets, tests, reporting, and logging.",
		Steps: []string{
			"Review search terms and add negatives",
			"Rebalance budgets by CPA/ROAS",
			"Refresh ad copy and RSAs tests",
			"Export performance report and email stakeholder",
			"Log changes and next actions",
		},
	},
	{
		Key:     "bug_triage",
		Title:   "Bug Triage & Handoff",
		Summary: "Repro, severity, labeling, assignment, ETA, and customer update.",
		Steps: []string{
			"Reproduce issue with clear steps",
			"Assign severity & labels",
			"Attach logs / screenshots",
			"Assign owner and ETA",
			"Update customer and link ticket",
		},
	},
	{
		Key:     "sales_discovery",
		Title:   "Sales Discovery Call",
		Summary: "Prep agenda, qualify needs, next steps, and CRM update.",
		Steps: []string{
			"Prep agenda & research account",
			"Run discovery and qualify",
			"Identify stakeholders & timeline",
			"Agree on next steps",
			"Update CRM and share recap",
		},
	},
}

// FindTemplate looks up a template by key.
func FindTemplate(key string) (Template, bool) {
	for _, t := range Templates {
		if t.Key == key {
			return t, true
		}
	}
	return Template{}, false
}

// Instantiate creates a fresh document from the template.
func (t Template) Instantiate() *Document {
	d := NewDocument()
	d.Title = t.Title
	d.Summary = t.Summary
	d.Steps = make([]Step, len(t.Steps))
	for i, s := range t.Steps {
		d.Steps[i] = PlainStep(s)
	}
	return d
}

// SeedDocuments returns the example set used when no persisted state exists
// or the persisted state is unreadable. Each seed carries an initial v1
// snapshot so the version views have something to show.
func SeedDocuments() []*Document {
	seeds := []struct {
		title, summary string
		steps          []string
		v1Titles       []string
	}{
		{
			title:   "Weekly Blog Publishing",
			summary: "Draft to publish with QA and checklist.",
			steps: []string{
				"Open CMS draft and set status to 'Ready for review'",
				"Run Grammarly and fix critical issues",
				"Add 2 internal and 2 external links",
				"Insert hero image with alt text",
				"Publish and verify live URL",
			},
			v1Titles: []string{"Open CMS draft", "Run Grammarly", "Add links", "Insert hero", "Publish"},
		},
		{
			title:   "New Employee Onboarding",
			summary: "Accounts, security, and welcome tasks.",
			steps: []string{
				"Create email + Slack account",
				"Grant access to Notion & GitHub",
				"Send security checklist",
				"Schedule intro meeting",
				"Assign onboarding buddy",
			},
			v1Titles: []string{"Create email", "Grant access", "Security checklist", "Intro meeting", "Assign buddy"},
		},
		{
			title:   "Monthly Reporting",
			summary: "Collect metrics and send to stakeholders.",
			steps: []string{
				"Export analytics dashboard to CSV",
				"Update KPIs in template",
				"Write 3-bullet highlights",
				"Attach charts as images",
				"Email to leadership list",
			},
			v1Titles: []string{"Export analytics", "Update KPIs", "Highlights", "Attach charts", "Email"},
		},
	}

	docs := make([]*Document, 0, len(seeds))
	for _, s := range seeds {
		d := NewDocument()
		d.Title = s.title
		d.Summary = s.summary
		d.Steps = make([]Step, len(s.steps))
		for i, t := range s.steps {
			d.Steps[i] = PlainStep(t)
		}
		v := d.SnapshotVersion("")
		// The seed snapshot predates the full step titles on purpose;
		// it gives the diff view an interesting baseline.
		for i := range d.Versions {
			if d.Versions[i].ID == v.ID {
				d.Versions[i].Steps = append([]string(nil), s.v1Titles...)
			}
		}
		docs = append(docs, d)
	}
	return docs
}
