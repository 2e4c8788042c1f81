package directory

import (
	"sqlzibar/internal/db/repository"
	"sqlzibar/internal/domain"
	"sqlzibar/internal/service/listing"
)

func chainBinding() listing.Binding[domain.Chain] {
	return listing.Binding[domain.Chain]{
		Table:            "Chains",
		IDColumn:         "Id",
		ResourceIDColumn: "ResourceId",
		Columns:          []string{"Id", "ResourceId", "Name", "City", "CreatedAt"},
		SortKeys: map[string]string{
			"name":      "Name",
			"city":      "City",
			"createdAt": "CreatedAt",
		},
		DefaultSortKey: "name",
		SearchColumns:  []string{"Name", "City"},
		Scan: func(scan func(dest ...any) error) (domain.Chain, error) {
			var c domain.Chain
			var createdAt string
			if err := scan(&c.ID, &c.ResourceID, &c.Name, &c.City, &createdAt); err != nil {
				return domain.Chain{}, err
			}
			t, err := repository.ParseTime(createdAt)
			if err != nil {
				return domain.Chain{}, err
			}
			c.CreatedAt = t
			return c, nil
		},
		SortValue: func(c domain.Chain, sortKey string) string {
			switch sortKey {
			case "city":
				return c.City
			case "createdAt":
				return repository.FormatTime(c.CreatedAt)
			default:
				return c.Name
			}
		},
		ID: func(c domain.Chain) string { return c.ID },
	}
}

func locationBinding() listing.Binding[domain.Location] {
	return listing.Binding[domain.Location]{
		Table:            "Locations",
		IDColumn:         "Id",
		ResourceIDColumn: "ResourceId",
		Columns:          []string{"Id", "ResourceId", "ChainId", "Name", "City", "CreatedAt"},
		SortKeys: map[string]string{
			"name":      "Name",
			"city":      "City",
			"createdAt": "CreatedAt",
		},
		DefaultSortKey: "name",
		SearchColumns:  []string{"Name", "City"},
		Scan: func(scan func(dest ...any) error) (domain.Location, error) {
			var l domain.Location
			var createdAt string
			if err := scan(&l.ID, &l.ResourceID, &l.ChainID, &l.Name, &l.City, &createdAt); err != nil {
				return domain.Location{}, err
			}
			t, err := repository.ParseTime(createdAt)
			if err != nil {
				return domain.Location{}, err
			}
			l.CreatedAt = t
			return l, nil
		},
		SortValue: func(l domain.Location, sortKey string) string {
			switch sortKey {
			case "city":
				return l.City
			case "createdAt":
				return repository.FormatTime(l.CreatedAt)
			default:
				return l.Name
			}
		},
		ID: func(l domain.Location) string { return l.ID },
	}
}
