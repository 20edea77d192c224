package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE flows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE flow_nodes (
				id VARCHAR(255) PRIMARY KEY,
				flow_id VARCHAR(255) NOT NULL,
				predefined_node_id VARCHAR(255) NOT NULL DEFAULT '',
				category VARCHAR(50) NOT NULL CHECK (category IN ('Trigger', 'Action', 'Logger')),
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				x DOUBLE PRECISION NOT NULL DEFAULT 0,
				y DOUBLE PRECISION NOT NULL DEFAULT 0,
				params JSONB NOT NULL DEFAULT '{}',
				variables JSONB,
				success_flow TEXT[] NOT NULL DEFAULT '{}',
				error_flow TEXT[] NOT NULL DEFAULT '{}'
			);

			CREATE INDEX idx_flow_nodes_flow_id ON flow_nodes(flow_id, category);

			CREATE TABLE predefined_nodes (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category VARCHAR(50) NOT NULL,
				required_params JSONB NOT NULL DEFAULT '{}',
				outputs JSONB NOT NULL DEFAULT '{}'
			);
		`,
		2: `
			CREATE TABLE trigger_configs (
				trigger_id VARCHAR(255) PRIMARY KEY,
				flow_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL DEFAULT '',
				params JSONB NOT NULL DEFAULT '{}',
				active BOOLEAN NOT NULL DEFAULT true,
				active_job_name VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_trigger_configs_active ON trigger_configs(active);
		`,
	}
}
