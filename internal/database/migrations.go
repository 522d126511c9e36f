package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		github_id BIGINT UNIQUE NOT NULL,
		login VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		avatar_url VARCHAR(500),
		role VARCHAR(50) NOT NULL DEFAULT 'MEMBER',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS installations (
		installation_id BIGINT PRIMARY KEY,
		account_id BIGINT NOT NULL,
		account_login VARCHAR(255) NOT NULL,
		account_type VARCHAR(20) NOT NULL,
		installer_github_id BIGINT,
		permissions JSONB NOT NULL DEFAULT '{}',
		repository_count INTEGER NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		installed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_installations_account_login ON installations(account_login)`,
	`CREATE INDEX IF NOT EXISTS idx_installations_installer_github_id ON installations(installer_github_id)`,

	`CREATE TABLE IF NOT EXISTS user_installation_roles (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		installation_id BIGINT NOT NULL,
		org_name VARCHAR(255) NOT NULL,
		role VARCHAR(50) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(user_id, installation_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_user_installation_roles_org_name ON user_installation_roles(org_name)`,

	`CREATE TABLE IF NOT EXISTS tenants (
		id VARCHAR(64) PRIMARY KEY,
		kind VARCHAR(20) NOT NULL,
		display_name VARCHAR(255) NOT NULL,
		account_login VARCHAR(255) NOT NULL,
		database_name VARCHAR(255) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS user_tenant_roles (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
		role VARCHAR(50) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(user_id, tenant_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_user_tenant_roles_tenant_id ON user_tenant_roles(tenant_id)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id VARCHAR(128) PRIMARY KEY,
		user_snapshot JSONB NOT NULL,
		active_tenant_id VARCHAR(64),
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,

	`CREATE TABLE IF NOT EXISTS onboarding_links (
		link_hash VARCHAR(128) PRIMARY KEY,
		session_id VARCHAR(128) NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_onboarding_links_session_id ON onboarding_links(session_id)`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
