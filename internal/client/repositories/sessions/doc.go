// Package sessions provides the client-side persistence layer for
// provisioned sessions, one row per identity and audience.
//
// Rows hold only ciphertext; sealing and opening is done by
// services.SessionService with the vault key.
//
// Typical Usage
//
//	repo := sessions.NewSQLiteRepository(db)
//	_ = repo.Put(ctx, stored)
//	s, _ := repo.Get(ctx, "frodo.example", "owner")
//	_ = repo.Delete(ctx, "frodo.example", "owner")
package sessions
