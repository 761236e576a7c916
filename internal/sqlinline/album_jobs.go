package sqlinline

// Every statement starts with a `--sql <uuid>` marker; infra.SQLRunner strips
// it before execution and logs under it, and internal/tools/sqllint enforces it.

const QInsertAlbumJob = `--sql 6a4c3a1f-f7cd-4556-b224-d9a727efb3b4
insert into album_jobs (id, user_id, session_id, customer_name, album_title, album_subtitle, payload, status)
values ($1, $2, $3, $4, $5, $6, $7, 'pending')
returning id, user_id, session_id, customer_name, album_title, album_subtitle, payload, status,
          output_key, error_message, created_at, started_at, completed_at, updated_at;
`

// QClaimNextAlbumJob claims the oldest pending job in one statement. Rows
// locked by a concurrent claim are skipped, so concurrent runners always
// receive disjoint jobs.
const QClaimNextAlbumJob = `--sql 5e7e4893-8963-40d3-aacb-86bb6f280b27
with next_job as (
    select id
    from album_jobs
    where status = 'pending'
    order by created_at asc, id asc
    for update skip locked
    limit 1
)
update album_jobs j
set status = 'processing', started_at = now(), updated_at = now()
from next_job
where j.id = next_job.id
returning j.id, j.user_id, j.session_id, j.customer_name, j.album_title, j.album_subtitle, j.payload, j.status,
          j.output_key, j.error_message, j.created_at, j.started_at, j.completed_at, j.updated_at;
`

const QMarkAlbumJobCompleted = `--sql d96743e2-2bc5-4c94-adf0-46eec587ada6
update album_jobs
set status = 'completed', output_key = $2, error_message = null, completed_at = now(), updated_at = now()
where id = $1 and status = 'processing';
`

const QMarkAlbumJobFailed = `--sql d34a94b2-4131-4b71-98c8-4ab3365bf11b
update album_jobs
set status = 'failed', error_message = $2, output_key = null, updated_at = now()
where id = $1 and status = 'processing';
`

const QSelectAlbumJob = `--sql 66d73f41-8f5f-4f47-a246-ab67e55549af
select id, user_id, session_id, customer_name, album_title, album_subtitle, payload, status,
       output_key, error_message, created_at, started_at, completed_at, updated_at
from album_jobs
where id = $1;
`

const QSelectAlbumJobStatus = `--sql 09b54305-3d72-461d-a458-38766cb1f364
select status from album_jobs where id = $1;
`

const QListAlbumJobs = `--sql 29ea364a-9e2b-4792-90b4-425f123119da
select id, user_id, session_id, customer_name, album_title, album_subtitle, payload, status,
       output_key, error_message, created_at, started_at, completed_at, updated_at
from album_jobs
where ($1 = '' or status = $1)
order by created_at desc
limit $2;
`
