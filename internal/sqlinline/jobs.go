package sqlinline

const QCreateVideoJobsTable = `--sql 0b6f8e7a-3d1c-4f52-9a80-2e4c7d9b1a63
create table if not exists video_jobs (
    job_key        text primary key,
    created_at     timestamptz not null,
    status         text not null,
    invocation_arn text,
    document       jsonb not null,
    updated_at     timestamptz not null default now()
);
`

const QUpsertVideoJob = `--sql 5a2d9c41-7e3b-4c8f-b1d6-93f0a4e87c25
insert into video_jobs (job_key, created_at, status, invocation_arn, document, updated_at)
values ($1, $2, $3, nullif($4, ''), $5::jsonb, now())
on conflict (job_key) do update
set created_at     = excluded.created_at,
    status         = excluded.status,
    invocation_arn = excluded.invocation_arn,
    document       = excluded.document,
    updated_at     = now();
`

const QSelectVideoJob = `--sql c3e71f08-94a2-4b6d-8d5e-6f1b20c4a9d7
select job_key, created_at, document
from video_jobs
where job_key = $1;
`

const QListVideoJobs = `--sql 9e4b2a7c-1f63-4d08-a5c9-7b3e8d0f2c16
select job_key, created_at, document
from video_jobs
order by created_at desc, job_key desc;
`

const QCreateVideoJobLocksTable = `--sql 4d8a1e36-b27f-4c95-8e03-a1f6c5d97b42
create table if not exists video_job_locks (
    job_key    text primary key,
    owner      text not null,
    expires_at timestamptz not null
);
`

// QAcquireVideoJobLock takes the lease when it is free or expired. One row
// affected means the caller holds it.
const QAcquireVideoJobLock = `--sql e15c7b90-6a4d-4f2e-93b8-0d7c2f4a8e61
insert into video_job_locks (job_key, owner, expires_at)
values ($1, $2, now() + make_interval(secs => $3))
on conflict (job_key) do update
set owner      = excluded.owner,
    expires_at = excluded.expires_at
where video_job_locks.expires_at < now();
`

const QReleaseVideoJobLock = `--sql 7b3f0d28-c9e1-4a56-b4d7-58e2a6c1f093
delete from video_job_locks
where job_key = $1 and owner = $2;
`
