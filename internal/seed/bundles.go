package seed

import catalogdomain "github.com/smallbiznis/esimmock/internal/catalog/domain"

var (
	europe = []string{"de", "fr", "it", "es", "nl", "be", "at", "pt", "ie", "gb"}
	asia   = []string{"jp", "kr", "th", "sg", "my", "id", "ph", "vn"}
	latam  = []string{"mx", "br", "ar", "cl", "co", "pe"}
	global = []string{"us", "ca", "mx", "gb", "de", "fr", "it", "es", "jp", "kr", "au"}
)

type bundle struct {
	id        string
	product   int
	name      string
	dataGB    float64
	days      int
	price     float64
	prices    map[string]float64
	wholesale float64
	pkg       string
	countries []string
	region    string
	badge     string
}

var defaults = []bundle{
	{"bundle_usa_1gb_7d", 1001, "USA 1GB 7 Days", 1, 7, 5.99, map[string]float64{"USD": 5.99, "EUR": 5.49, "MXN": 109}, 2.50, catalogdomain.PackageTypeCountry, []string{"us"}, "", ""},
	{"bundle_usa_3gb_15d", 1002, "USA 3GB 15 Days", 3, 15, 9.99, map[string]float64{"USD": 9.99, "EUR": 8.99, "MXN": 179}, 4.50, catalogdomain.PackageTypeCountry, []string{"us"}, "", ""},
	{"bundle_usa_5gb_30d", 1003, "USA 5GB 30 Days", 5, 30, 14.99, map[string]float64{"USD": 14.99, "EUR": 13.49, "MXN": 269}, 7.00, catalogdomain.PackageTypeCountry, []string{"us"}, "", "Most Popular"},
	{"bundle_usa_10gb_30d", 1004, "USA 10GB 30 Days", 10, 30, 24.99, map[string]float64{"USD": 24.99, "EUR": 22.49, "MXN": 449}, 12.00, catalogdomain.PackageTypeCountry, []string{"us"}, "", "Best Value"},
	{"bundle_usa_20gb_30d", 1005, "USA 20GB 30 Days", 20, 30, 39.99, map[string]float64{"USD": 39.99, "EUR": 35.99, "MXN": 719}, 20.00, catalogdomain.PackageTypeCountry, []string{"us"}, "", ""},

	{"bundle_mexico_1gb_7d", 2001, "Mexico 1GB 7 Days", 1, 7, 4.99, map[string]float64{"USD": 4.99, "EUR": 4.49, "MXN": 89}, 2.00, catalogdomain.PackageTypeCountry, []string{"mx"}, "", ""},
	{"bundle_mexico_5gb_30d", 2002, "Mexico 5GB 30 Days", 5, 30, 12.99, map[string]float64{"USD": 12.99, "EUR": 11.69, "MXN": 229}, 6.00, catalogdomain.PackageTypeCountry, []string{"mx"}, "", "Most Popular"},
	{"bundle_mexico_10gb_30d", 2003, "Mexico 10GB 30 Days", 10, 30, 19.99, map[string]float64{"USD": 19.99, "EUR": 17.99, "MXN": 359}, 10.00, catalogdomain.PackageTypeCountry, []string{"mx"}, "", ""},

	{"bundle_canada_3gb_15d", 3001, "Canada 3GB 15 Days", 3, 15, 11.99, map[string]float64{"USD": 11.99, "EUR": 10.79, "CAD": 15.99}, 5.50, catalogdomain.PackageTypeCountry, []string{"ca"}, "", ""},
	{"bundle_canada_5gb_30d", 3002, "Canada 5GB 30 Days", 5, 30, 16.99, map[string]float64{"USD": 16.99, "EUR": 15.29, "CAD": 22.99}, 8.00, catalogdomain.PackageTypeCountry, []string{"ca"}, "", "Most Popular"},

	{"bundle_europe_3gb_15d", 4001, "Europe 3GB 15 Days", 3, 15, 14.99, map[string]float64{"USD": 14.99, "EUR": 12.99, "GBP": 11.99}, 7.00, catalogdomain.PackageTypeRegion, europe, "europe", ""},
	{"bundle_europe_5gb_30d", 4002, "Europe 5GB 30 Days", 5, 30, 24.99, map[string]float64{"USD": 24.99, "EUR": 21.99, "GBP": 19.99}, 12.00, catalogdomain.PackageTypeRegion, europe, "europe", "Most Popular"},
	{"bundle_europe_10gb_30d", 4003, "Europe 10GB 30 Days", 10, 30, 39.99, map[string]float64{"USD": 39.99, "EUR": 34.99, "GBP": 31.99}, 20.00, catalogdomain.PackageTypeRegion, europe, "europe", "Best Value"},

	{"bundle_asia_3gb_15d", 5001, "Asia 3GB 15 Days", 3, 15, 12.99, map[string]float64{"USD": 12.99, "EUR": 11.69, "JPY": 1899}, 6.00, catalogdomain.PackageTypeRegion, asia, "asia", ""},
	{"bundle_asia_5gb_30d", 5002, "Asia 5GB 30 Days", 5, 30, 19.99, map[string]float64{"USD": 19.99, "EUR": 17.99, "JPY": 2899}, 10.00, catalogdomain.PackageTypeRegion, asia, "asia", "Most Popular"},

	{"bundle_latam_5gb_30d", 6001, "Latin America 5GB 30 Days", 5, 30, 17.99, map[string]float64{"USD": 17.99, "EUR": 16.19, "MXN": 323}, 9.00, catalogdomain.PackageTypeRegion, latam, "latam", "Most Popular"},

	{"bundle_global_3gb_15d", 7001, "Global 3GB 15 Days", 3, 15, 29.99, map[string]float64{"USD": 29.99, "EUR": 26.99, "GBP": 24.99}, 15.00, catalogdomain.PackageTypeGlobal, global, "", ""},
	{"bundle_global_5gb_30d", 7002, "Global 5GB 30 Days", 5, 30, 44.99, map[string]float64{"USD": 44.99, "EUR": 40.49, "GBP": 36.99}, 22.00, catalogdomain.PackageTypeGlobal, global, "", "Most Popular"},
	{"bundle_global_10gb_30d", 7003, "Global 10GB 30 Days", 10, 30, 69.99, map[string]float64{"USD": 69.99, "EUR": 62.99, "GBP": 57.99}, 35.00, catalogdomain.PackageTypeGlobal, global, "", "Best Value"},
}

// DefaultBundles returns fresh create requests for the built-in catalog.
func DefaultBundles() []catalogdomain.CreateRequest {
	out := make([]catalogdomain.CreateRequest, 0, len(defaults))
	for _, b := range defaults {
		out = append(out, catalogdomain.CreateRequest{
			PlanID:        b.id,
			ProductNumber: b.product,
			Name:          b.name,
			DataGB:        b.dataGB,
			ValidityDays:  b.days,
			Price:         b.price,
			Currency:      "USD",
			Prices:        b.prices,
			WholesaleCost: b.wholesale,
			PackageType:   b.pkg,
			Countries:     append([]string(nil), b.countries...),
			Region:        b.region,
			Badge:         b.badge,
		})
	}
	return out
}
