package parcel

// classDesc maps NYS RPS property class codes to display labels. The table
// is fixed; codes the table doesn't know fall back by prefix and finally to
// "Other".
var classDesc = map[string]string{
	"100": "Agricultural",
	"105": "Agricultural Vacant",
	"110": "Livestock",
	"112": "Dairy Farm",
	"113": "Cattle Farm",
	"117": "Horse Farm",
	"120": "Field Crops",
	"200": "Residential",
	"210": "One Family Residential",
	"220": "Two Family Residential",
	"230": "Three Family Residential",
	"240": "Rural Residence",
	"250": "Estate",
	"260": "Seasonal Residence",
	"270": "Mobile Home",
	"280": "Multiple Residences",
	"281": "Multiple Res - 2 to 3 Units",
	"283": "Multiple Res - 4 to 6 Units",
	"300": "Vacant Land",
	"311": "Vacant Land - Residential",
	"312": "Vacant Land - Under 10 Acres",
	"314": "Vacant Land - Rural",
	"322": "Vacant Land - Over 10 Acres",
	"323": "Vacant Land - Forest",
	"330": "Vacant Land - Commercial",
	"340": "Vacant Land - Industrial",
	"400": "Commercial",
	"411": "Apartments",
	"421": "Restaurant",
	"422": "Diner/Luncheonette",
	"425": "Bar",
	"430": "Motel",
	"432": "Hotel",
	"449": "Other Storage",
	"464": "Office Building",
	"480": "Multiple Use",
	"485": "One Story Small Structure",
	"500": "Recreation & Entertainment",
	"534": "Social Organization",
	"570": "Marina",
	"582": "Camping Facility",
	"590": "Park",
	"600": "Community Service",
	"612": "School",
	"620": "Religious",
	"632": "Health Facility",
	"651": "Highway Garage",
	"662": "Police/Fire Station",
	"700": "Industrial",
	"710": "Manufacturing",
	"800": "Public Service",
	"822": "Water Supply",
	"831": "Telephone",
	"900": "Wild/Forest/Conservation",
	"910": "Private Forest",
	"911": "Forest Land - Private",
	"920": "State Forest",
	"930": "State Owned - Other",
	"931": "State Owned - Forest",
	"940": "State Reforestation",
	"941": "State Land - Reforestation",
	"942": "State Land - Wilderness",
	"961": "State Owned - Other Agency",
	"962": "State Owned - DEC",
	"963": "State Park",
	"970": "Federal",
	"980": "County Land",
	"990": "Town Land",
}

// classColors maps the leading class digit to the display color the map
// views use for parcel fills.
var classColors = map[byte]string{
	'1': "#8BC34A", // agricultural
	'2': "#4CAF50", // residential
	'3': "#FFC107", // vacant land
	'4': "#FF5722", // commercial
	'5': "#9C27B0", // recreation
	'6': "#607D8B", // community service
	'9': "#2196F3", // state / forest
}

// ClassDesc returns the label for a property class code. Codes without an
// exact entry fall back to their two-digit then one-digit family; anything
// still unknown is "Other".
func ClassDesc(code string) string {
	if desc, ok := classDesc[code]; ok {
		return desc
	}
	if len(code) >= 2 {
		if desc, ok := classDesc[code[:2]+"0"]; ok {
			return desc
		}
	}
	if len(code) >= 1 {
		if desc, ok := classDesc[code[:1]+"00"]; ok {
			return desc
		}
	}
	return "Other"
}

// ClassColor returns the map fill color for a class code, or a neutral
// gray for codes outside the known families.
func ClassColor(code string) string {
	if len(code) > 0 {
		if c, ok := classColors[code[0]]; ok {
			return c
		}
	}
	return "#9E9E9E"
}
