package ch

import "testing"

func TestBuildClientInfo(t *testing.T) {
	t.Parallel()
	info := BuildClientInfo(" scrape ", "contribot")
	if len(info.Products) != 5 {
		t.Fatalf("products = %d", len(info.Products))
	}
	if info.Products[0].Name != "contribot" || info.Products[1].Version != "scrape" {
		t.Fatalf("unexpected products %+v", info.Products)
	}
}
