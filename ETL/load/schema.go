package load

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS dim_time (
		time_key BIGINT NOT NULL PRIMARY KEY,
		full_date DATE NOT NULL,
		year SMALLINT NOT NULL,
		quarter TINYINT NOT NULL,
		month TINYINT NOT NULL,
		month_name VARCHAR(16) NOT NULL,
		day_of_month TINYINT NOT NULL,
		day_of_week TINYINT NOT NULL,
		day_name VARCHAR(16) NOT NULL,
		week_of_year TINYINT NOT NULL,
		is_weekend BOOLEAN NOT NULL,
		UNIQUE KEY uq_dim_time_date (full_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS dim_provider (
		provider_key BIGINT NOT NULL PRIMARY KEY,
		natural_key VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		business_type VARCHAR(128) NOT NULL DEFAULT '',
		is_chain BOOLEAN NULL,
		UNIQUE KEY uq_dim_provider_nk (natural_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS dim_zone (
		zone_key BIGINT NOT NULL PRIMARY KEY,
		zone_code VARCHAR(32) NOT NULL,
		zone_name VARCHAR(128) NOT NULL,
		city VARCHAR(128) NOT NULL,
		UNIQUE KEY uq_dim_zone_code (zone_code)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS dim_weather (
		weather_key BIGINT NOT NULL PRIMARY KEY,
		natural_key VARCHAR(64) NOT NULL,
		condition_code VARCHAR(16) NOT NULL,
		label VARCHAR(64) NOT NULL,
		temp_bucket VARCHAR(16) NOT NULL,
		UNIQUE KEY uq_dim_weather_nk (natural_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS fact_shift (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		natural_key VARCHAR(512) NOT NULL,
		source_id VARCHAR(64) NOT NULL DEFAULT '',
		time_key BIGINT NOT NULL,
		provider_key BIGINT NOT NULL,
		zone_key BIGINT NOT NULL,
		weather_key BIGINT NOT NULL,
		start_time DATETIME NULL,
		end_time DATETIME NULL,
		weekly_group INT NOT NULL DEFAULT 0,
		special_event VARCHAR(255) NOT NULL DEFAULT '',
		income DECIMAL(14,2) NOT NULL DEFAULT 0,
		tips DECIMAL(14,2) NOT NULL DEFAULT 0,
		distance_km DECIMAL(10,2) NOT NULL DEFAULT 0,
		order_count INT NOT NULL DEFAULT 0,
		duration_minutes DECIMAL(10,2) NOT NULL DEFAULT 0,
		fingerprint CHAR(64) NOT NULL,
		run_id VARCHAR(36) NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_fact_shift_nk (natural_key),
		CONSTRAINT fk_shift_time FOREIGN KEY (time_key) REFERENCES dim_time (time_key),
		CONSTRAINT fk_shift_provider FOREIGN KEY (provider_key) REFERENCES dim_provider (provider_key),
		CONSTRAINT fk_shift_zone FOREIGN KEY (zone_key) REFERENCES dim_zone (zone_key),
		CONSTRAINT fk_shift_weather FOREIGN KEY (weather_key) REFERENCES dim_weather (weather_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS fact_order (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		natural_key VARCHAR(512) NOT NULL,
		source_id VARCHAR(64) NOT NULL DEFAULT '',
		time_key BIGINT NOT NULL,
		provider_key BIGINT NOT NULL,
		zone_key BIGINT NOT NULL,
		customer_zone_key BIGINT NULL,
		weather_key BIGINT NOT NULL,
		accepted_at DATETIME NULL,
		delivered_at DATETIME NULL,
		income DECIMAL(14,2) NOT NULL DEFAULT 0,
		tips DECIMAL(14,2) NOT NULL DEFAULT 0,
		distance_km DECIMAL(10,2) NOT NULL DEFAULT 0,
		delivery_minutes DECIMAL(10,2) NOT NULL DEFAULT 0,
		fingerprint CHAR(64) NOT NULL,
		run_id VARCHAR(36) NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_fact_order_nk (natural_key),
		CONSTRAINT fk_order_time FOREIGN KEY (time_key) REFERENCES dim_time (time_key),
		CONSTRAINT fk_order_provider FOREIGN KEY (provider_key) REFERENCES dim_provider (provider_key),
		CONSTRAINT fk_order_zone FOREIGN KEY (zone_key) REFERENCES dim_zone (zone_key),
		CONSTRAINT fk_order_customer_zone FOREIGN KEY (customer_zone_key) REFERENCES dim_zone (zone_key),
		CONSTRAINT fk_order_weather FOREIGN KEY (weather_key) REFERENCES dim_weather (weather_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS etl_quarantine (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		raw_hash CHAR(64) NOT NULL,
		run_id VARCHAR(36) NOT NULL,
		raw_ref VARCHAR(512) NOT NULL,
		source VARCHAR(16) NOT NULL,
		reason VARCHAR(32) NOT NULL,
		detail TEXT NOT NULL,
		payload BLOB NOT NULL,
		recorded_at DATETIME NOT NULL,
		UNIQUE KEY uq_quarantine_record (raw_ref, raw_hash),
		KEY idx_quarantine_reason (reason)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
