package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type seedTest struct {
	Name      string
	BasePrice int64
}

type seedGroup struct {
	Title string
	Tests []seedTest
}

type seedPackage struct {
	Name  string
	Tests []string
}

// initialGroups is the catalog a new installation starts with.
var initialGroups = []seedGroup{
	{"BİYOKİMYA", []seedTest{
		{"Açlık Kan Şekeri", 100},
		{"Tokluk Kan Şekeri", 100},
		{"HbA1C", 330},
		{"OGTT", 120},
		{"ÜRE", 120},
		{"Total Protein", 120},
		{"KREATİNİN", 120},
		{"Albumin", 100},
		{"Ürik Asit", 100},
		{"Total Kolesterol", 120},
		{"HDL-Kolesterol", 120},
		{"LDL-Kolestrol", 120},
		{"Trigliserid", 120},
		{"Total Lipid", 120},
		{"Total Bilirubin", 120},
		{"Direkt Bilirubin", 120},
		{"SGOT (AST)", 120},
		{"SGPT (ALT)", 100},
		{"CPK (Total)", 150},
		{"CK-MB", 150},
		{"Myoglobin", 500},
		{"LDH", 120},
		{"Troponin T", 500},
		{"Amilaz", 150},
		{"Lipaz", 150},
		{"Alkalen Fosfotaz (ALP)", 100},
		{"GGT", 125},
		{"Na", 125},
		{"K", 125},
		{"Cl", 125},
		{"Fosfor", 125},
		{"Kalsiyum", 125},
		{"Magnezyum", 150},
		{"Demir", 150},
		{"TDBK (Demir Bağlama)", 150},
		{"Kolinesteraz", 300},
		{"Çinko", 400},
		{"Bakır", 650},
		{"Çinko (Eritrosit)", 1000},
		{"Selenyum Serum", 950},
		{"Pro BNP", 1500},
		{"Seruloplazmin", 1000},
	}},
	{"HEMATOLOJİ", []seedTest{
		{"Hemogram", 400},
		{"Periferik Yayma", 500},
		{"Protrombin Zamanı (INR)", 300},
		{"APTT", 300},
		{"Fibrinojen", 600},
		{"Direkt Coombs", 550},
		{"İndirekt Coombs", 550},
		{"Kan Grubu", 400},
		{"Sedimentasyon", 150},
		{"Vitamin B12", 250},
		{"Folik Asit", 200},
		{"Ferritin", 250},
		{"G6PD", 750},
		{"HB.Elektroforez", 600},
		{"D-Dimer", 1000},
	}},
	{"HEPATİT MARKERLERİ", []seedTest{
		{"HbsAg", 400},
		{"Anti Hbs", 400},
		{"HAV IGM", 700},
		{"HAV IGG", 700},
		{"Anti HBC Total", 700},
		{"Anti HBC IgM", 700},
		{"Anti Hbe", 600},
		{"Anti HCV", 450},
		{"Anti HIV (1+2) p24", 500},
	}},
	{"MİKROBİYOLOJİ", []seedTest{
		{"Strep A Antijeni (Boğaz)", 400},
		{"Boğaz Kültürü", 450},
		{"İdrar Kültürü", 450},
		{"Gaita Kültürü", 500},
		{"Balgam Kültürü", 450},
		{"Mantar Kültürü", 450},
		{"AF Genital", 2000},
		{"Yara Kültürü", 500},
		{"Vagen Kültürü", 1000},
		{"Üretrel Akıntı Kültürü", 1000},
		{"Klamidiye Antijeni", 500},
		{"İnfluensa A/B Tarama Testi", 750},
		{"RSV/Adeno Virüs Tarama Testi", 750},
		{"PORTÖR (Burun Boğaz Gaita)", 400},
	}},
	{"SEROLOJİ", []seedTest{
		{"Toxoplazma IgG", 450},
		{"Toxoplazma IgM", 450},
		{"Rubella IgG", 450},
		{"Rubella IgM", 150},
		{"CMV IgG", 450},
		{"CMV IgM", 450},
		{"Helico Pylori IgG", 600},
		{"ANA", 750},
		{"Anti ds DNA", 1000},
		{"Brusella Agg.", 300},
		{"Grubel Widal", 400},
		{"VDRL", 350},
		{"TPHA", 700},
		{"Doku Transglutaminaz IGG", 600},
		{"Doku Transglutaminaz IGA", 600},
		{"Anti Gliadin IGG", 1000},
		{"Anti Gliadin IGA", 1000},
		{"IgA", 450},
		{"IgG", 450},
		{"IgM", 450},
		{"IgE", 500},
		{"SİSTATİN C", 1000},
		{"EBV EBNA IGG", 2000},
		{"EBV VCA IGG", 600},
		{"EBV VCA IGM", 600},
		{"ASO", 150},
		{"CRP", 200},
		{"RF", 150},
	}},
	{"GAİTA", []seedTest{
		{"Gaita Tektiki", 300},
		{"Gaitada Parazit", 300},
		{"Gaitada Gizli Kan", 400},
		{"Amip Antijeni", 500},
		{"Selofan Band", 300},
		{"Rota-Adenovirüs", 300},
		{"Helicobakter Antijen", 600},
	}},
	{"HORMONLAR", []seedTest{
		{"TT3", 250},
		{"TT4", 250},
		{"FT3", 250},
		{"FT4", 250},
		{"TSH", 250},
		{"ANTİ TPO", 400},
		{"ANTİ Tiroglobulin", 450},
		{"Tiroglobulin", 600},
		{"LH", 250},
		{"FSH", 250},
		{"Estradiol (E2)", 300},
		{"BHCG (gebelik testi)", 600},
		{"Progesteron", 400},
		{"Prolaktin", 300},
		{"Total Testesteron", 350},
		{"Serbest Testesteron", 600},
		{"DHEA SO4", 330},
		{"Kortizol", 300},
		{"Androstenedion", 1000},
		{"Homosistein", 750},
		{"Anti Mullerian Hormon", 1500},
		{"C-Peptit", 600},
		{"PTH", 250},
		{"İnsulin", 300},
		{"25 OH Vitamin D3", 660},
		{"SHGB", 660},
		{"Growth Hormon", 800},
		{"P ANCA", 1200},
		{"ACTH (Sabah)", 900},
	}},
	{"İDRAR", []seedTest{
		{"Tam İdrar Tahlili", 300},
		{"Kreatinin Klirens Testi", 500},
		{"Redüktan Madde", 500},
		{"İdrarda İyot", 1000},
		{"İdrarda Mikroalbumin", 500},
	}},
	{"TÜMÖR MARKERLERİ", []seedTest{
		{"CEA", 500},
		{"CA 15,3", 500},
		{"CA 19,9", 500},
		{"CA 125", 500},
		{"CA 72,4", 900},
		{"AFP", 500},
		{"TOTAL PSA", 500},
		{"FREE PSA", 500},
	}},
	{"ANTENATAL TESTLER", []seedTest{
		{"İkili Tarama testi", 2500},
		{"Dörtlü Tarama Testi", 3000},
	}},
	{"ALLERJİ", []seedTest{
		{"Pediatrik Allerji paneli (27 paremetre)", 3600},
		{"Gıda Allerji Paneli (35 parametre)", 4000},
		{"Solunum Allerji Paneli (29 parametre)", 4000},
		{"Alex-2 Moleküler Allerji Testi", 12000},
		{"Gıda İntolerans Testi (216)", 11000},
	}},
	{"MULTİPLEX PCR TESTLERİ", []seedTest{
		{"Solunum Patojenleri PCR Paneli", 2500},
		{"Cinsel yolla bulaşan hastalıklar PCR Testleri", 4000},
		{"Human Papilloma Virüs Genotiplendirme PCR", 4500},
		{"Gastroenterit etkenleri Mikroorgamizma PCR paneli (MX 24 panel)", 5500},
		{"Solunum Yolu Microorganizma PCR Testleri", 5000},
	}},
}

var initialPackages = []seedPackage{
	{"Böbrek Fonksiyon Testi", []string{"ÜRE", "KREATİNİN", "Na", "K", "Cl", "Kalsiyum", "Fosfor", "Albumin"}},
	{"Tarama Testleri", []string{"İkili Tarama testi", "Dörtlü Tarama Testi"}},
}

// SeedResult counts what Seed created.
type SeedResult struct {
	Groups   int
	Tests    int
	Packages int
}

// Seed loads the initial catalog into an empty database. It does nothing
// when any group already exists.
func Seed(ctx context.Context, svc *Service) (SeedResult, error) {
	var res SeedResult
	n, err := svc.groups.Count(ctx)
	if err != nil {
		return res, readErr("count groups", err)
	}
	if n > 0 {
		return res, nil
	}

	byName := make(map[string]uuid.UUID)
	for _, sg := range initialGroups {
		g := &TestGroup{Title: sg.Title}
		if err := svc.CreateGroup(ctx, g); err != nil {
			return res, fmt.Errorf("seed group %q: %w", sg.Title, err)
		}
		res.Groups++
		for _, st := range sg.Tests {
			t := &Test{GroupID: g.ID, Name: st.Name, BasePrice: st.BasePrice}
			if err := svc.CreateTest(ctx, t); err != nil {
				return res, fmt.Errorf("seed test %q: %w", st.Name, err)
			}
			byName[t.Name] = t.ID
			res.Tests++
		}
	}
	for _, sp := range initialPackages {
		in := PackageInput{Name: sp.Name}
		for _, name := range sp.Tests {
			id, ok := byName[name]
			if !ok {
				return res, fmt.Errorf("seed package %q: unknown test %q", sp.Name, name)
			}
			in.TestIDs = append(in.TestIDs, id)
		}
		if _, err := svc.CreatePackage(ctx, in); err != nil {
			return res, fmt.Errorf("seed package %q: %w", sp.Name, err)
		}
		res.Packages++
	}
	return res, nil
}
