package sqlassets

import _ "embed"

//go:embed schema/companies.sql
var CompaniesSQL string

//go:embed schema/users.sql
var UsersSQL string

//go:embed schema/dealers.sql
var DealersSQL string
