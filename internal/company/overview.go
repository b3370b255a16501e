package company

// Overview is the auxiliary dashboard_data record produced alongside the two
// dashboards. It is reporting only.
type Overview struct {
	Company  ProfileSection  `json:"company_overview"`
	Business BusinessSection `json:"business_model"`
	Funding  FundingSection  `json:"funding"`
	Growth   GrowthSection   `json:"growth_metrics"`
}

type ProfileSection struct {
	Name      string `json:"name"`
	Industry  string `json:"industry"`
	Founded   string `json:"founded"`
	Website   string `json:"website,omitempty"`
	HQCity    string `json:"hq_city,omitempty"`
	HQState   string `json:"hq_state,omitempty"`
	HQCountry string `json:"hq_country,omitempty"`
}

type BusinessSection struct {
	RevenueModel string `json:"revenue_model"`
	TargetMarket string `json:"target_market"`
}

type FundingSection struct {
	TotalRaised string `json:"total_raised"`
	LastRound   string `json:"last_round"`
	Valuation   string `json:"valuation,omitempty"`
}

type GrowthSection struct {
	RevenueGrowth string `json:"revenue_growth"`
	EmployeeCount string `json:"employee_count"`
}

// Overview builds dashboard_data from a loaded company.
func (c *Company) Overview() Overview {
	return Overview{
		Company: ProfileSection{
			Name:      c.DisplayName(),
			Industry:  Or(c.Industry),
			Founded:   Or(c.Founded),
			Website:   Or(c.Website),
			HQCity:    Or(c.HQCity),
			HQState:   Or(c.HQState),
			HQCountry: Or(c.HQCountry),
		},
		Business: BusinessSection{
			RevenueModel: Or(c.RevenueModel),
			TargetMarket: OrDefault(c.TargetMarket, "Enterprise / B2B"),
		},
		Funding: FundingSection{
			TotalRaised: Or(c.Funding),
			LastRound:   Or(c.LastRound),
			Valuation:   Or(c.Valuation),
		},
		Growth: GrowthSection{
			RevenueGrowth: Or(c.RevenueGrowth),
			EmployeeCount: Or(c.EmployeeCount),
		},
	}
}

// StubOverview is dashboard_data for a company with no data on disk.
func StubOverview(companyID string) Overview {
	return Overview{
		Company:  ProfileSection{Name: companyID, Industry: NotDisclosed, Founded: NotDisclosed},
		Business: BusinessSection{RevenueModel: NotDisclosed, TargetMarket: NotDisclosed},
		Funding:  FundingSection{TotalRaised: NotDisclosed, LastRound: NotDisclosed},
		Growth:   GrowthSection{RevenueGrowth: NotDisclosed, EmployeeCount: NotDisclosed},
	}
}
