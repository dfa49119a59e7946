package store

const QCreateSchema = `--sql 6d2f8a41-3c7e-4b9a-9e15-0a4c7b2d8f63
create table if not exists creative_jobs (
    id            text primary key,
    batch_id      text not null,
    format        text not null,
    status        text not null,
    created_at    timestamptz not null,
    updated_at    timestamptz not null,
    image_url     text not null default '',
    result_url    text not null default '',
    error_message text not null default ''
);
`

const QCreateBatchIndex = `--sql 9b41e7c2-d03a-4a58-b1f6-5e82c9a4d7b3
create index if not exists creative_jobs_batch_idx on creative_jobs (batch_id, created_at);
`

// QInsertJobs inserts a whole batch in one statement.
const QInsertJobs = `--sql 1f7c3e90-5a2b-4d8e-b6c1-93e0d4a7f215
insert into creative_jobs (id, batch_id, format, status, created_at, updated_at)
select * from unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::timestamptz[], $6::timestamptz[]);
`

// QTransitionJob only matches rows whose current status may move to $2.
const QTransitionJob = `--sql a83b5d27-e6f1-4c09-8b4d-2f7e1c6a9d30
update creative_jobs
set status = $2,
    updated_at = $3,
    image_url = coalesce(nullif($4, ''), image_url),
    result_url = coalesce(nullif($5, ''), result_url),
    error_message = coalesce(nullif($6, ''), error_message)
where id = $1 and status = any($7::text[])
returning id, batch_id, format, status, created_at, updated_at, image_url, result_url, error_message;
`

const QGetJob = `--sql 4c9e1a68-0b3d-4f72-a5e8-7d16b2c9e041
select id, batch_id, format, status, created_at, updated_at, image_url, result_url, error_message
from creative_jobs
where id = $1;
`

const QListJobs = `--sql e2057bd9-8c4a-4e16-9f3b-c5a8d1e07f92
select id, batch_id, format, status, created_at, updated_at, image_url, result_url, error_message
from creative_jobs
where ($1::text = '' or batch_id = $1::text)
  and ($2::text = '' or status = $2::text)
order by created_at asc, id asc;
`
