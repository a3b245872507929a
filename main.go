package main

import (
	"ddl-alterator/cmd"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/sijms/go-ora/v2"
	_ "github.com/viant/afsc/s3"
	_ "modernc.org/sqlite"
)

func main() {
	cmd.Execute()
}
