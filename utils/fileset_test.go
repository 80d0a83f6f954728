package utils

import "testing"

func TestFileSetNoDuplicates(t *testing.T) {
	s := NewFileSet()

	added := s.Add("Lista_imoveis_MG.csv")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("Lista_imoveis_MG.csv")
	if added {
		t.Error("second Add of same name should return false")
	}

	if !s.Add("Lista_imoveis_SP.csv") {
		t.Error("Add of a different name should return true")
	}
}
