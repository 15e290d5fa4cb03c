package db

// Compile-time assertions that the Postgres implementations satisfy their
// façade interfaces, the way the teacher's repository.go pins
// *PostgresAccountRepository against AccountRepository.
var (
	_ AccountRepository     = (*PostgresAccountRepository)(nil)
	_ RealmRepository       = (*PostgresRealmRepository)(nil)
	_ CharacterRepository   = (*PostgresCharacterRepository)(nil)
	_ ItemRepository        = (*PostgresItemRepository)(nil)
	_ AreaTriggerRepository = (*PostgresAreaTriggerRepository)(nil)
)
